package rtm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/danmuck/rtmctl/internal/protocol/registry"
	"github.com/danmuck/rtmctl/internal/protocol/session"
	"github.com/danmuck/rtmctl/internal/transport"
)

// Socket is one real-time connection and its routing state.
type Socket struct {
	id  string
	cfg session.Config
	tr  transport.Transport
	reg *registry.Registry
	log zerolog.Logger

	table   *session.DispatchTable
	pending *session.Pending
	outbox  *session.Outbox
	gate    session.DrainGate
	state   session.Lifecycle
	nextID  atomic.Int64
	limiter *rate.Limiter

	observers session.Observers
	recorder  Recorder

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(o options) (*Socket, error) {
	cfg := o.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Socket{
		id:        id,
		cfg:       cfg,
		reg:       o.reg,
		log:       o.logger.With().Str("component", "rtm").Str("session", id).Logger(),
		table:     session.NewDispatchTable(),
		pending:   session.NewPending(),
		outbox:    session.NewOutbox(),
		observers: o.observers,
		recorder:  o.recorder,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if cfg.SendRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst)
	}
	for _, spec := range o.handlers {
		if _, err := s.bind(spec); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// Dial connects to url and returns an open socket.
func Dial(ctx context.Context, url string, opts ...Option) (*Socket, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s, err := newSocket(o)
	if err != nil {
		return nil, err
	}
	s.state.Store(session.StateConnecting)
	s.log.Debug().Str("url", url).Msg("rtm.Dial connecting")

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	tr, err := transport.Dial(dialCtx, url, transport.Config{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		ReadChunkBytes:   s.cfg.Limits.ReadChunkBytes,
	})
	if err != nil {
		s.cancel()
		s.state.Store(session.StateClosed)
		return nil, err
	}
	s.start(tr, o.onConnected)
	return s, nil
}

// Open wraps an established transport and returns an open socket.
func Open(tr transport.Transport, opts ...Option) (*Socket, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrNotConnected)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s, err := newSocket(o)
	if err != nil {
		return nil, err
	}
	s.state.Store(session.StateConnecting)
	s.start(tr, o.onConnected)
	return s, nil
}

func (s *Socket) start(tr transport.Transport, onConnected func(*Socket)) {
	s.tr = tr
	s.state.Store(session.StateOpen)
	s.log.Info().Int("bindings", s.table.Len()).Msg("rtm.Socket open")
	go s.readLoop()
	if onConnected != nil {
		onConnected(s)
	}
}

// ID is the local session id used in logs and conditions.
func (s *Socket) ID() string {
	return s.id
}

func (s *Socket) State() session.State {
	return s.state.Load()
}

func (s *Socket) Connected() bool {
	return s.state.Load() == session.StateOpen
}

// Done is closed once the socket has fully closed.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) Registry() *registry.Registry {
	return s.reg
}

// Close stops both pipelines, closes the transport, and drops queued
// messages, pending callbacks and bindings. Only the first call has effect;
// exactly one closed condition is reported.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(session.StateClosing)
		s.cancel()
		if s.tr != nil {
			err = s.tr.Close()
		}
		dropped := s.outbox.Clear()
		abandoned := s.pending.Clear()
		s.table.Clear()
		s.state.Store(session.StateClosed)
		s.log.Info().
			Int("dropped", dropped).
			Int("abandoned", abandoned).
			Err(err).
			Msg("rtm.Socket closed")
		s.report(session.Condition{Kind: session.KindClosed, Err: err})
		close(s.done)
	})
	return err
}

func (s *Socket) report(c session.Condition) {
	c.Session = s.id
	s.observers.Observe(c)
}
