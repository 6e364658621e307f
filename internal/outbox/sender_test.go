package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/conversation"
)

// mockTransport records calls and blocks on gate when set.
type mockTransport struct {
	mu    sync.Mutex
	calls []sendCall
	gate  chan struct{}
	err   error
}

type sendCall struct {
	To   conversation.ID
	Body string
}

func (m *mockTransport) Send(ctx context.Context, to conversation.ID, body string) error {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{To: to, Body: body})
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func (m *mockTransport) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestSendAck(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	mock := &mockTransport{}
	s := NewSender(mock, b, nil)
	to := conversation.Handle("+15551234567")

	id, ok := s.Send(to, "hello")
	if !ok || id == "" {
		t.Fatalf("Send() = (%q, %v), want accepted", id, ok)
	}

	evt := waitEvent(t, ch)
	if evt.Kind != bus.KindSendAck {
		t.Fatalf("event = %s, want %s", evt.Kind, bus.KindSendAck)
	}
	res := evt.Payload.(Result)
	if res.RequestID != id || res.To != to || res.Body != "hello" {
		t.Errorf("result = %+v", res)
	}
	if s.Pending() {
		t.Error("still pending after ack")
	}
}

func TestSecondSendWhilePendingIsDropped(t *testing.T) {
	mock := &mockTransport{gate: make(chan struct{})}
	s := NewSender(mock, bus.New(), nil)
	to := conversation.Handle("+1555")

	if _, ok := s.Send(to, "first"); !ok {
		t.Fatal("first Send() rejected")
	}
	for mock.count() == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, ok := s.Send(to, "second"); ok {
		t.Error("second Send() accepted while first pending")
	}
	if _, err := s.SendWait(context.Background(), to, "third"); !errors.Is(err, ErrBusy) {
		t.Errorf("SendWait() error = %v, want ErrBusy", err)
	}

	close(mock.gate)
	s.Wait()
	if n := mock.count(); n != 1 {
		t.Errorf("transport called %d times, want 1", n)
	}

	if _, ok := s.Send(to, "after"); !ok {
		t.Error("Send() rejected after first completed")
	}
	s.Wait()
	if n := mock.count(); n != 2 {
		t.Errorf("transport called %d times, want 2", n)
	}
}

func TestSendFailureClearsGuard(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("message.send_failed", 10)
	defer unsub()

	boom := errors.New("Messages got an error: Can't get participant")
	s := NewSender(&mockTransport{err: boom}, b, nil)

	_, err := s.SendWait(context.Background(), conversation.GroupChat("chat1", ""), "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("SendWait() error = %v, want %v", err, boom)
	}
	evt := waitEvent(t, ch)
	if res := evt.Payload.(Result); !errors.Is(res.Err, boom) {
		t.Errorf("result error = %v", res.Err)
	}
	if s.Pending() {
		t.Error("guard not cleared after failure")
	}
}
