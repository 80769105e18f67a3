// Package rtm is the real-time messaging socket.
//
// A Socket owns one transport connection. Outbound messages are serialized
// into a FIFO outbox drained by at most one writer goroutine; inbound frames
// are reassembled by a single reader goroutine, correlated with pending
// requests by reply_to, and otherwise routed to handlers bound by route key.
//
// Typical use:
//
//	s, err := rtm.Dial(ctx, url,
//		rtm.WithHandlers(rtm.On(func(m *messages.Message) error { ... })),
//	)
//	defer s.Close()
//	pong, err := rtm.Call[messages.Pong](ctx, s, messages.NewPing())
package rtm
