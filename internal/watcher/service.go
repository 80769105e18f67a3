// Package watcher keeps one rtm socket connected, logs the events it
// receives, and exposes its state on the admin server.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/rtmctl/internal/admin"
	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/protocol/session"
	"github.com/danmuck/rtmctl/internal/rtm"
)

var ErrConnectAttemptsExhausted = errors.New("watcher: connect attempts exhausted")

type Service struct {
	cfg      config.Config
	metrics  *observability.Metrics
	bus      *session.BusObserver
	logger   zerolog.Logger
	handlers []rtm.HandlerSpec
	rng      *rand.Rand

	mu         sync.RWMutex
	sock       *rtm.Socket
	lastErr    string
	reconnects atomic.Int64
}

type Option func(*Service)

// WithHandlers replaces the default event logging handlers.
func WithHandlers(specs ...rtm.HandlerSpec) Option {
	return func(s *Service) {
		s.handlers = specs
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		bus:    session.NewBusObserver(evbus.New()),
		logger: log.Logger.With().Str("component", "watcher").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handlers == nil {
		s.handlers = EventHandlers(s.logger)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(nil)
	}
	for _, kind := range []session.Kind{session.KindSendError, session.KindReceiveError} {
		_ = s.bus.Subscribe(kind, s.recordFailure)
	}
	return s
}

// Run blocks until ctx is cancelled or the session loop gives up.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		srv := admin.New(admin.Config{
			Addr:        s.cfg.AdminAddr,
			CORSOrigins: s.cfg.AdminCORSOrigins,
		}, s.metrics, s.Status)
		go func() {
			adminErr <- srv.Run(ctx)
		}()
	}

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- s.runSessionLoop(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("watcher.Service.Run shutdown")
		<-sessionErr
		return nil
	case err := <-adminErr:
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
		return <-sessionErr
	case err := <-sessionErr:
		return err
	}
}

func (s *Service) runSessionLoop(ctx context.Context) error {
	backoff := session.NewBackoff(s.cfg.Session.Backoff, s.rng)
	for {
		if ctx.Err() != nil {
			return nil
		}
		sock, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !s.cfg.Reconnect {
				return err
			}
			delay := backoff.Next()
			if limit := s.cfg.MaxConnectAttempts; limit > 0 && backoff.Attempt() >= limit {
				return fmt.Errorf("%w: attempts=%d: %v", ErrConnectAttemptsExhausted, backoff.Attempt(), err)
			}
			s.logger.Warn().
				Int("attempt", backoff.Attempt()).
				Dur("retry_in", delay).
				Err(err).
				Msg("watcher.Service.runSessionLoop connect failed")
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		backoff.Reset()
		s.setSocket(sock)
		s.monitor(ctx, sock)
		s.setSocket(nil)
		if ctx.Err() != nil {
			return nil
		}
		if !s.cfg.Reconnect {
			return nil
		}
		s.reconnects.Add(1)
		s.logger.Warn().Str("session", sock.ID()).Msg("watcher.Service.runSessionLoop session lost")
	}
}

func (s *Service) connect(ctx context.Context) (*rtm.Socket, error) {
	url := s.cfg.URL
	if s.cfg.SVNRev != "" {
		var err error
		url, err = rtm.ConnectURL(s.cfg.URL, s.cfg.SVNRev, time.Now())
		if err != nil {
			return nil, err
		}
	}
	return rtm.Dial(ctx, url,
		rtm.WithConfig(s.cfg.Session),
		rtm.WithLogger(s.logger),
		rtm.WithRecorder(s.metrics),
		rtm.WithObserver(s.metrics),
		rtm.WithObserver(observability.NewLogObserver(s.logger)),
		rtm.WithObserver(s.bus),
		rtm.WithHandlers(s.handlers...),
		rtm.WithOnConnected(func(sock *rtm.Socket) {
			s.logger.Info().Str("session", sock.ID()).Msg("watcher.Service connected")
		}),
	)
}

// monitor returns once sock closes or ctx ends, pinging on the configured interval.
func (s *Service) monitor(ctx context.Context, sock *rtm.Socket) {
	defer sock.Close()
	var tick <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sock.Done():
			return
		case <-tick:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingInterval)
			rtt, err := rtm.Ping(pingCtx, sock)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn().Err(err).Msg("watcher.Service.monitor ping failed")
				}
				return
			}
			s.logger.Debug().Dur("rtt", rtt).Msg("watcher.Service.monitor pong")
		}
	}
}

func (s *Service) recordFailure(c session.Condition) {
	if c.Err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = c.Err.Error()
	s.mu.Unlock()
}

func (s *Service) setSocket(sock *rtm.Socket) {
	s.mu.Lock()
	s.sock = sock
	s.mu.Unlock()
}

// Socket returns the current socket, or nil between connections.
func (s *Service) Socket() *rtm.Socket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sock
}

// Bus exposes socket conditions by kind topic.
func (s *Service) Bus() *session.BusObserver {
	return s.bus
}

func (s *Service) Status() admin.Status {
	s.mu.RLock()
	sock := s.sock
	lastErr := s.lastErr
	s.mu.RUnlock()

	st := admin.Status{
		State:      session.StateClosed.String(),
		Reconnects: int(s.reconnects.Load()),
		LastError:  lastErr,
	}
	if sock == nil {
		return st
	}
	st.Connected = sock.Connected()
	st.State = sock.State().String()
	st.Session = sock.ID()
	for _, key := range sock.Routes() {
		st.Routes = append(st.Routes, key.String())
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
