package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/protocol/messages"
	"github.com/danmuck/rtmctl/internal/protocol/session"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
	"github.com/danmuck/rtmctl/internal/testutil/wstest"
)

func testConfig(url string) config.Config {
	cfg := config.Default()
	cfg.URL = url
	cfg.AdminAddr = ""
	cfg.PingInterval = 0
	cfg.Session.Backoff = session.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: 5 * time.Millisecond}
	return cfg
}

func newTestService(cfg config.Config, opts ...Option) *Service {
	opts = append([]Option{WithMetrics(observability.NewMetrics(prometheus.NewRegistry()))}, opts...)
	return NewService(cfg, opts...)
}

// pongServer greets and answers pings; the first connection is dropped
// right after the greeting when dropFirst is set.
func pongServer(conns *atomic.Int32, dropFirst bool) wstest.Handler {
	return func(conn *websocket.Conn) {
		n := conns.Add(1)
		if err := wstest.Send(conn, `{"type":"hello"}`); err != nil {
			return
		}
		if dropFirst && n == 1 {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req messages.Ping
			if json.Unmarshal(data, &req) != nil || req.Type != "ping" {
				continue
			}
			if err := wstest.Send(conn, fmt.Sprintf(`{"type":"pong","reply_to":%d}`, req.ID)); err != nil {
				return
			}
		}
	}
}

func TestServiceReconnectsAfterSessionLoss(t *testing.T) {
	testlog.Start(t)
	var conns atomic.Int32
	srv := wstest.Start(t, pongServer(&conns, true))

	hellos := make(chan struct{}, 4)
	svc := newTestService(testConfig(srv.URL), WithHandlers(rtm.On(func(*messages.Hello) error {
		hellos <- struct{}{}
		return nil
	})))

	closed := make(chan session.Condition, 4)
	require.NoError(t, svc.Bus().Subscribe(session.KindClosed, func(c session.Condition) {
		closed <- c
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-hellos:
		case <-time.After(5 * time.Second):
			t.Fatalf("hello %d never arrived", i+1)
		}
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("first session never reported closed")
	}

	require.Eventually(t, func() bool {
		st := svc.Status()
		return st.Connected && st.Reconnects == 1
	}, 5*time.Second, 5*time.Millisecond)
	st := svc.Status()
	require.Equal(t, "open", st.State)
	require.NotEmpty(t, st.Session)
	require.Contains(t, st.Routes, "hello/none")

	sock := svc.Socket()
	require.NotNil(t, sock)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	_, err := rtm.Ping(pingCtx, sock)
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop")
	}
	require.Nil(t, svc.Socket())
	require.Equal(t, int32(2), conns.Load())
}

func TestServiceGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("ws://127.0.0.1:1/rtm")
	cfg.MaxConnectAttempts = 3
	svc := newTestService(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := svc.Run(ctx)
	require.True(t, errors.Is(err, ErrConnectAttemptsExhausted), "got=%v", err)
}

func TestServiceWithoutReconnectReturnsDialError(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("ws://127.0.0.1:1/rtm")
	cfg.Reconnect = false
	svc := newTestService(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := svc.Run(ctx)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrConnectAttemptsExhausted))
	require.False(t, svc.Status().Connected)
}

func TestMonitorPingsOnInterval(t *testing.T) {
	testlog.Start(t)
	var conns atomic.Int32
	srv := wstest.Start(t, pongServer(&conns, false))
	cfg := testConfig(srv.URL)
	cfg.PingInterval = 20 * time.Millisecond
	reg := prometheus.NewRegistry()
	svc := NewService(cfg, WithMetrics(observability.NewMetrics(reg)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, f := range families {
			if f.GetName() == "rtmctl_rtm_messages_sent_total" {
				return f.GetMetric()[0].GetCounter().GetValue() >= 2
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, svc.Status().Connected)

	cancel()
	require.NoError(t, <-done)
}
