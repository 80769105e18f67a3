package rtm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/frame"
	"github.com/danmuck/rtmctl/internal/protocol/messages"
	"github.com/danmuck/rtmctl/internal/protocol/session"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
)

func openFake(t *testing.T, opts ...Option) (*Socket, *fakeTransport, *conditions) {
	t.Helper()
	tr := newFakeTransport()
	conds := &conditions{}
	opts = append([]Option{WithObserver(conds)}, opts...)
	s, err := Open(tr, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, tr, conds
}

func TestSendWireFormat(t *testing.T) {
	testlog.Start(t)
	s, tr, _ := openFake(t)

	id, err := s.Send(&messages.Message{Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != 1 {
		t.Fatalf("unexpected id=%d", id)
	}
	waitFor(t, "write", func() bool { return len(tr.written()) == 1 })
	if got := tr.written()[0]; got != `{"id":1,"type":"message","text":"hi"}` {
		t.Fatalf("unexpected wire got=%s", got)
	}
}

func TestSendFillsSubtypeFromRegistry(t *testing.T) {
	testlog.Start(t)
	s, tr, _ := openFake(t)

	if _, err := s.Send(&messages.DeletedMessage{Channel: "C1", DeletedTS: "1.2"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := s.Send(&messages.Typing{Channel: "C1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "writes", func() bool { return len(tr.written()) == 2 })
	got := tr.written()
	if got[0] != `{"id":1,"type":"message","subtype":"message_deleted","channel":"C1","deleted_ts":"1.2"}` {
		t.Fatalf("unexpected wire got=%s", got[0])
	}
	if got[1] != `{"id":2,"type":"typing","channel":"C1"}` {
		t.Fatalf("unexpected wire got=%s", got[1])
	}

	type unregistered struct {
		protocol.Envelope
	}
	if _, err := s.Send(&unregistered{}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	if _, err := s.Send(nil); !errors.Is(err, protocol.ErrNilMessage) {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
}

func TestSingleDrainWorkerUnderConcurrentSends(t *testing.T) {
	testlog.Start(t)
	s, tr, _ := openFake(t)
	tr.writeDelay = 50 * time.Microsecond

	const producers, perProducer = 16, 25
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				msg := messages.NewMessage(fmt.Sprintf("C%d", p), fmt.Sprintf("%d", i))
				if _, err := s.Send(msg); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	total := producers * perProducer
	waitFor(t, "all writes", func() bool { return len(tr.written()) == total })

	if got := tr.maxActive.Load(); got != 1 {
		t.Fatalf("observed %d concurrent writers", got)
	}
	ids := make([]int, 0, total)
	lastText := make(map[string]int)
	for _, raw := range tr.written() {
		var m messages.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			t.Fatalf("decode write: %v", err)
		}
		ids = append(ids, int(m.ID))
		n, err := strconv.Atoi(m.Text)
		if err != nil {
			t.Fatalf("unexpected text %q", m.Text)
		}
		if prev, ok := lastText[m.Channel]; ok && n != prev+1 {
			t.Fatalf("producer %s out of order: %d after %d", m.Channel, n, prev)
		}
		lastText[m.Channel] = n
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("ids not unique and dense: %v", ids)
		}
	}
	waitFor(t, "drain release", func() bool { return !s.gate.Active() })
}

func TestReplyResolvedExactlyOnce(t *testing.T) {
	testlog.Start(t)
	s, _, conds := openFake(t)

	calls := 0
	id, err := s.SendWithCallback(messages.NewPing(), func(raw []byte) { calls++ })
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	reply := []byte(fmt.Sprintf(`{"type":"pong","reply_to":%d}`, id))
	if err := s.Dispatch(reply); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	if err := s.Dispatch(reply); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute on second reply, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times", calls)
	}
	noRoute := conds.of(session.KindNoRoute)
	if len(noRoute) != 1 || noRoute[0].Key != protocol.Key("pong", "") {
		t.Fatalf("unexpected no_route conditions: %+v", noRoute)
	}
}

func TestReassemblesSplitFrames(t *testing.T) {
	testlog.Start(t)
	got := make(chan *messages.PresenceChange, 8)
	_, tr, _ := openFake(t, WithHandlers(On(func(m *messages.PresenceChange) error {
		got <- m
		return nil
	})))

	payload := `{"type":"presence_change","user":"U023BECGF","presence":"away"}`
	for _, n := range []int{1, 2, 5} {
		tr.push(payload, n)
		select {
		case m := <-got:
			if m.User != "U023BECGF" || m.Presence != messages.PresenceAway {
				t.Fatalf("n=%d unexpected message: %+v", n, m)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("n=%d message never dispatched", n)
		}
	}
}

func TestUnknownKeyReportedAndLoopContinues(t *testing.T) {
	testlog.Start(t)
	got := make(chan *messages.PresenceChange, 1)
	_, tr, conds := openFake(t, WithHandlers(On(func(m *messages.PresenceChange) error {
		got <- m
		return nil
	})))

	tr.push(`{"type":"bogus_event","x":1}`, 1)
	tr.push(`not json`, 1)
	tr.push(`null`, 1)
	tr.push(`{"type":"presence_change","user":"U1","presence":"active"}`, 2)
	select {
	case m := <-got:
		if m.User != "U1" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("loop stopped after unroutable message")
	}
	noRoute := conds.of(session.KindNoRoute)
	if len(noRoute) != 1 || noRoute[0].Key != protocol.Key("bogus_event", "") {
		t.Fatalf("unexpected no_route conditions: %+v", noRoute)
	}
	if len(conds.of(session.KindDecodeError)) != 1 {
		t.Fatalf("expected one decode error, got %+v", conds.of(session.KindDecodeError))
	}
}

func TestPresenceChangeDispatchAndNoRoute(t *testing.T) {
	testlog.Start(t)
	s, _, conds := openFake(t)
	raw := []byte(`{"type":"presence_change","user":"U023BECGF","presence":"away"}`)

	if err := s.Dispatch(raw); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	if c := conds.of(session.KindNoRoute); len(c) != 1 || string(c[0].Raw) != string(raw) {
		t.Fatalf("unexpected no_route conditions: %+v", c)
	}

	var seen *messages.PresenceChange
	id, err := Bind(s, func(m *messages.PresenceChange) error {
		seen = m
		return nil
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := s.Dispatch(raw); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if seen == nil || seen.User != "U023BECGF" || seen.Presence != messages.PresenceAway {
		t.Fatalf("unexpected handler input: %+v", seen)
	}

	if !s.Unbind(id) {
		t.Fatalf("unbind failed")
	}
	if err := s.Dispatch(raw); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute after unbind, got %v", err)
	}
}

func TestHandlersRunInOrderAndStopOnError(t *testing.T) {
	testlog.Start(t)
	s, _, conds := openFake(t)
	var order []string
	boom := errors.New("boom")
	_, _ = BindFunc(s, func(m *messages.Message) { order = append(order, "first") })
	_, _ = Bind(s, func(m *messages.Message) error {
		order = append(order, "second")
		return boom
	})
	_, _ = BindFunc(s, func(m *messages.Message) { order = append(order, "third") })

	err := s.Dispatch([]byte(`{"type":"message","subtype":"bot_message","text":"x"}`))
	var herr *session.HandlerError
	if !errors.As(err, &herr) || !errors.Is(err, boom) {
		t.Fatalf("expected HandlerError wrapping boom, got %v", err)
	}
	if herr.Key != protocol.Key("message", "bot_message") {
		t.Fatalf("unexpected key: %s", herr.Key)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order: %v", order)
	}
	if len(conds.of(session.KindHandlerError)) != 1 {
		t.Fatalf("handler error not reported")
	}
}

func TestHandlerPanicIsReported(t *testing.T) {
	testlog.Start(t)
	s, _, conds := openFake(t)
	_, _ = BindFunc(s, func(m *messages.Hello) { panic("hello handler") })
	err := s.Dispatch([]byte(`{"type":"hello"}`))
	var herr *session.HandlerError
	if !errors.As(err, &herr) || herr.Panic != "hello handler" {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if len(conds.of(session.KindHandlerError)) != 1 {
		t.Fatalf("panic not reported")
	}
}

func TestBindWithExplicitKeyDecodesOwnShape(t *testing.T) {
	testlog.Start(t)
	s, _, _ := openFake(t)
	var text string
	var typing *messages.Typing
	_, _ = BindFunc(s, func(m *messages.Message) { text = m.Text })
	_, err := BindFunc(s, func(m *messages.Typing) { typing = m }, protocol.Key("message", ""))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := s.Dispatch([]byte(`{"type":"message","user":"U1","channel":"C1","text":"t"}`)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if text != "t" || typing == nil || typing.Channel != "C1" {
		t.Fatalf("unexpected decode text=%q typing=%+v", text, typing)
	}

	type unknown struct {
		protocol.Envelope
	}
	if _, err := BindFunc(s, func(*unknown) {}); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestDoubleCloseReportsOnce(t *testing.T) {
	testlog.Start(t)
	s, tr, conds := openFake(t)
	callbackCalled := false
	if _, err := s.SendWithCallback(messages.NewPing(), func([]byte) { callbackCalled = true }); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("done not closed")
	}
	if n := len(conds.of(session.KindClosed)); n != 1 {
		t.Fatalf("closed reported %d times", n)
	}
	if tr.closes.Load() != 1 {
		t.Fatalf("transport closed %d times", tr.closes.Load())
	}
	if s.Connected() || s.State() != session.StateClosed {
		t.Fatalf("unexpected state=%s", s.State())
	}
	if _, err := s.Send(messages.NewPing()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if s.pending.Len() != 0 || callbackCalled {
		t.Fatalf("pending callbacks must be dropped on close")
	}
	if _, err := BindFunc(s, func(*messages.Hello) {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReceiveErrorClosesSocket(t *testing.T) {
	testlog.Start(t)
	s, tr, conds := openFake(t)
	tr.readErr <- errors.New("connection reset")
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("socket did not close")
	}
	if len(conds.of(session.KindReceiveError)) != 1 || len(conds.of(session.KindClosed)) != 1 {
		t.Fatalf("unexpected conditions receive=%d closed=%d",
			len(conds.of(session.KindReceiveError)), len(conds.of(session.KindClosed)))
	}
}

func TestSendErrorClosesSocket(t *testing.T) {
	testlog.Start(t)
	tr := newFakeTransport()
	tr.writeErr = errors.New("broken pipe")
	conds := &conditions{}
	s, err := Open(tr, WithObserver(conds))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Send(messages.NewPing()); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("socket did not close")
	}
	sendErrs := conds.of(session.KindSendError)
	if len(sendErrs) != 1 || len(sendErrs[0].Raw) == 0 {
		t.Fatalf("unexpected send errors: %+v", sendErrs)
	}
}

func TestOversizedMessageDroppedAndLoopContinues(t *testing.T) {
	testlog.Start(t)
	cfg := session.DefaultConfig()
	cfg.Limits = frame.Limits{MaxMessageBytes: 64, ReadChunkBytes: 16}
	got := make(chan *messages.Hello, 1)
	_, tr, conds := openFake(t, WithConfig(cfg), WithHandlers(On(func(m *messages.Hello) error {
		got <- m
		return nil
	})))

	big := `{"type":"message","text":"` + strings.Repeat("0123456789", 7) + `"}`
	for _, f := range frame.Split([]byte(big), 16) {
		tr.frames <- f
	}
	tr.push(`{"type":"hello"}`, 1)
	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatalf("hello not dispatched after oversized message")
	}
	decodeErrs := conds.of(session.KindDecodeError)
	if len(decodeErrs) != 1 || !errors.Is(decodeErrs[0].Err, frame.ErrMessageTooLarge) {
		t.Fatalf("unexpected decode errors: %+v", decodeErrs)
	}
}

func TestOnConnectedRunsAfterOpen(t *testing.T) {
	testlog.Start(t)
	var state session.State
	s, tr, _ := openFake(t, WithOnConnected(func(s *Socket) {
		state = s.State()
		_, _ = s.Send(messages.NewPing())
	}))
	if state != session.StateOpen || s.ID() == "" {
		t.Fatalf("on connected saw state=%s id=%q", state, s.ID())
	}
	waitFor(t, "ping write", func() bool { return len(tr.written()) == 1 })
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := session.DefaultConfig()
	cfg.SendRate = -5
	if _, err := Open(newFakeTransport(), WithConfig(cfg)); !errors.Is(err, session.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := Open(nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendRateLimited(t *testing.T) {
	testlog.Start(t)
	cfg := session.DefaultConfig()
	cfg.SendRate = 200
	cfg.SendBurst = 1
	s, tr, _ := openFake(t, WithConfig(cfg))
	for i := 0; i < 5; i++ {
		if _, err := s.Send(messages.NewPing()); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	waitFor(t, "paced writes", func() bool { return len(tr.written()) == 5 })
}
