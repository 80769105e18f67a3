// Package protocol owns the wire envelope contract.
//
// Ownership boundary:
// - envelope fields shared by every message shape
// - route keys (type, subtype) and their normalization
// - JSON encode/decode of envelopes
//
// Message shapes live in protocol/messages, the shape registry in
// protocol/registry, and connection-scoped state in protocol/session.
package protocol
