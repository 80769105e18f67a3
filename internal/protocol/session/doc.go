// Package session holds the per-connection bookkeeping of a real-time socket.
//
// Ownership boundary:
// - dispatch table (route key -> ordered handlers)
// - pending request correlation (id -> one-shot callback)
// - FIFO outbox and the single-drain gate
// - lifecycle state and observable conditions
// - connection config and reconnect backoff
//
// Nothing here touches the network; internal/rtm wires these pieces to a transport.
package session
