package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/conversation"
)

// ErrBusy is returned when a send is already in flight.
var ErrBusy = errors.New("a message is already being sent")

// DefaultTimeout bounds one bridge call.
const DefaultTimeout = 30 * time.Second

// Transport hands a message to Messages.app.
type Transport interface {
	Send(ctx context.Context, to conversation.ID, body string) error
}

// Result is the payload of message.send_ack and message.send_failed events.
type Result struct {
	RequestID string
	To        conversation.ID
	Body      string
	Err       error
}

// Sender allows one send at a time. A request made while another is
// pending is dropped, not queued.
type Sender struct {
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger
	timeout   time.Duration

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewSender(t Transport, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{transport: t, bus: b, logger: logger, timeout: DefaultTimeout}
}

// Pending reports whether a send is in flight.
func (s *Sender) Pending() bool {
	return s.inFlight.Load()
}

// Send starts delivering body in the background and returns its request
// id. It returns false without contacting the transport when a send is
// already pending.
func (s *Sender) Send(to conversation.ID, body string) (string, bool) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("send dropped, another is pending", zap.String("to", to.Key()))
		return "", false
	}
	id := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.deliver(ctx, id, to, body)
	}()
	return id, true
}

// SendWait delivers body and waits for the outcome. It shares the
// in-flight guard with Send and returns ErrBusy instead of waiting.
func (s *Sender) SendWait(ctx context.Context, to conversation.ID, body string) (string, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return id, s.deliver(ctx, id, to, body)
}

// Wait blocks until background sends finish.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// deliver clears the in-flight flag before announcing the outcome, so a
// listener reacting to the event can send again.
func (s *Sender) deliver(ctx context.Context, id string, to conversation.ID, body string) error {
	err := s.transport.Send(ctx, to, body)
	s.inFlight.Store(false)

	res := Result{RequestID: id, To: to, Body: body, Err: err}
	if err != nil {
		s.logger.Error("failed to send message", zap.String("request_id", id), zap.String("to", to.Key()), zap.Error(err))
		s.bus.Emit(bus.KindSendFailed, res)
		return err
	}
	s.logger.Info("message sent", zap.String("request_id", id), zap.String("to", to.Key()))
	s.bus.Emit(bus.KindSendAck, res)
	return nil
}
