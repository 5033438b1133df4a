package actuate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"playcast/internal/core/domain"
	"playcast/pkg/circuitbreaker"
)

// testAgent plays the role of the local driver service: it accepts
// bridge connections and records every message it is fed.
type testAgent struct {
	srv      *httptest.Server
	messages chan map[string]any

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	a := &testAgent{messages: make(chan map[string]any, 64)}
	upgrader := websocket.Upgrader{}

	a.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		a.mu.Lock()
		a.conns = append(a.conns, conn)
		a.mu.Unlock()

		go func() {
			for {
				var msg map[string]any
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				a.messages <- msg
			}
		}()
	}))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *testAgent) url() string {
	return "ws" + strings.TrimPrefix(a.srv.URL, "http")
}

func (a *testAgent) dropAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, conn := range a.conns {
		conn.Close()
	}
}

func (a *testAgent) connCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func (a *testAgent) nextMessage(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-a.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("agent received no message")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeGamepad_PushDeliversSnapshot(t *testing.T) {
	agent := newTestAgent(t)
	bridge := NewBridgeGamepad(agent.url(), time.Second, zaptest.NewLogger(t).Sugar())
	defer bridge.Close()

	if err := bridge.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	state := domain.GamepadState{
		Buttons:      domain.ButtonA | domain.ButtonStart,
		LeftTrigger:  128,
		RightTrigger: 255,
		ThumbLX:      16383,
		ThumbLY:      -16383,
	}
	if err := bridge.Push(context.Background(), state); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	msg := agent.nextMessage(t)
	if msg["type"] != "gamepad-state" {
		t.Errorf("message type = %v, want gamepad-state", msg["type"])
	}
	if msg["buttons"] != float64(state.Buttons) {
		t.Errorf("buttons = %v, want %d", msg["buttons"], state.Buttons)
	}
	if msg["left_trigger"] != float64(128) || msg["right_trigger"] != float64(255) {
		t.Errorf("triggers = (%v, %v), want (128, 255)", msg["left_trigger"], msg["right_trigger"])
	}
	if msg["thumb_lx"] != float64(16383) || msg["thumb_ly"] != float64(-16383) {
		t.Errorf("left stick = (%v, %v), want (16383, -16383)", msg["thumb_lx"], msg["thumb_ly"])
	}
}

func TestBridgeGamepad_ReconnectsAfterDrop(t *testing.T) {
	agent := newTestAgent(t)
	bridge := NewBridgeGamepad(agent.url(), time.Second, zaptest.NewLogger(t).Sugar())
	defer bridge.Close()

	var reconnected atomic.Bool
	bridge.SetOnReconnect(func() { reconnected.Store(true) })

	if err := bridge.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	state := domain.GamepadState{Buttons: domain.ButtonB}
	if err := bridge.Push(context.Background(), state); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	agent.dropAll()

	// The drop surfaces on a write, not instantly.
	waitFor(t, "push failure after drop", func() bool {
		return bridge.Push(context.Background(), state) != nil
	})
	waitFor(t, "replacement connection", func() bool { return agent.connCount() == 2 })
	waitFor(t, "pushes to resume", func() bool {
		return bridge.Push(context.Background(), state) == nil
	})
	waitFor(t, "reconnect callback", reconnected.Load)
}

func TestBridgeGamepad_CloseStopsPushes(t *testing.T) {
	agent := newTestAgent(t)
	bridge := NewBridgeGamepad(agent.url(), time.Second, zaptest.NewLogger(t).Sugar())

	if err := bridge.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := bridge.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bridge.Push(context.Background(), domain.GamepadState{}); err == nil {
		t.Error("Push() after Close succeeded, want error")
	}
}

func TestBridgePointer_SendsCommands(t *testing.T) {
	agent := newTestAgent(t)
	pointer := NewBridgePointer(agent.url(), time.Second, zaptest.NewLogger(t).Sugar())
	defer pointer.Close()

	if err := pointer.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := pointer.MoveTo(context.Background(), 640, 360); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}
	msg := agent.nextMessage(t)
	if msg["type"] != "pointer-move" || msg["x"] != float64(640) || msg["y"] != float64(360) {
		t.Errorf("message = %v, want pointer-move to (640, 360)", msg)
	}

	if err := pointer.LeftClick(context.Background()); err != nil {
		t.Fatalf("LeftClick() error = %v", err)
	}
	msg = agent.nextMessage(t)
	if msg["type"] != "pointer-button" || msg["button"] != "left" || msg["action"] != "click" {
		t.Errorf("message = %v, want left click", msg)
	}

	if err := pointer.Scroll(context.Background(), 0, -5); err != nil {
		t.Fatalf("Scroll() error = %v", err)
	}
	msg = agent.nextMessage(t)
	if msg["type"] != "pointer-scroll" || msg["vertical"] != float64(-5) {
		t.Errorf("message = %v, want scroll of -5", msg)
	}
}

type failingGamepad struct {
	mu     sync.Mutex
	pushes int
}

func (f *failingGamepad) Push(ctx context.Context, state domain.GamepadState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	return errors.New("device gone")
}

func (f *failingGamepad) Close() error { return nil }

func (f *failingGamepad) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

func TestBreakerGamepad_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &failingGamepad{}
	cfg := circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 1,
	}
	g := NewBreakerGamepad(inner, cfg, zaptest.NewLogger(t).Sugar())

	state := domain.GamepadState{Buttons: domain.ButtonX}
	for i := 0; i < 2; i++ {
		if err := g.Push(context.Background(), state); err == nil {
			t.Fatalf("Push() %d succeeded, want failure", i)
		}
	}

	err := g.Push(context.Background(), state)
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("Push() after threshold error = %v, want ErrOpen", err)
	}
	if got := inner.pushCount(); got != 2 {
		t.Errorf("inner pushes = %d, want 2 (open circuit must not call through)", got)
	}

	// A reconnect resets the breaker and lets pushes through again.
	g.Reset()
	g.Push(context.Background(), state)
	if got := inner.pushCount(); got != 3 {
		t.Errorf("inner pushes after Reset = %d, want 3", got)
	}
}
