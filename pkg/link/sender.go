package link

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request asks the Sender task to deliver Message.
type Request struct {
	Message Message
	Timeout time.Duration
	// Result receives the outcome when set. It must have room for one
	// value, otherwise the outcome is dropped.
	Result chan<- error
}

// Sender delivers messages reliably: each attempt is a Command with a
// fresh id, retried after Timeout until the peer acknowledges it.
type Sender struct {
	name     string
	ids      *IDGenerator
	waiters  *WaiterRegistry
	outbound chan<- Envelope
	requests <-chan Request
	maxFrame int
	metrics  *Metrics
	tracer   trace.Tracer
}

// Name implements framework.Named.
func (s *Sender) Name() string {
	return s.name + "/sender"
}

// Send blocks until the peer acknowledges msg. There is no retry limit,
// only ctx ends an unanswered send.
func (s *Sender) Send(ctx context.Context, msg Message, timeout time.Duration) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	if err = s.checkSize(payload); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "link.send", trace.WithAttributes(
		attribute.String("link", s.name),
		attribute.Int("payload.size", len(payload)),
	))
	defer span.End()
	for attempt := 1; ; attempt++ {
		acked, err := s.attempt(ctx, payload, timeout)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if acked {
			span.SetAttributes(attribute.Int("attempts", attempt))
			s.metrics.SendsCompleted.Inc()
			return nil
		}
	}
}

func (s *Sender) checkSize(payload []byte) error {
	data, err := NewCommand(0, payload).MarshalBinary()
	if err == nil {
		_, err = EncodeFrameLimit(data, s.maxFrame)
	}
	return err
}

func (s *Sender) attempt(ctx context.Context, payload []byte, timeout time.Duration) (bool, error) {
	cmd := NewCommand(s.ids.Next(), payload)
	done := s.waiters.Register(cmd.ID)
	s.metrics.InFlight.Set(float64(s.waiters.Len()))
	s.metrics.SendAttempts.Inc()

	select {
	case s.outbound <- cmd:
	case <-ctx.Done():
		s.deregister(cmd.ID)
		return false, ctx.Err()
	}
	glog.V(3).Infof("[%s] sent %v", s.name, cmd)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done.Done():
		glog.V(2).Infof("[%s] waiter for id %d completed", s.name, cmd.ID)
		return true, nil
	case <-timer.C:
		glog.Warningf("[%s] waiter for id %d timing out", s.name, cmd.ID)
		s.metrics.SendTimeouts.Inc()
		s.deregister(cmd.ID)
		return false, nil
	case <-ctx.Done():
		s.deregister(cmd.ID)
		return false, ctx.Err()
	}
}

func (s *Sender) deregister(id ID) {
	s.waiters.Deregister(id)
	s.metrics.InFlight.Set(float64(s.waiters.Len()))
}

// Run implements framework.Runnable. Requests are served one at a time in
// arrival order.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.requests:
			err := s.Send(ctx, req.Message, req.Timeout)
			if err != nil && ctx.Err() == nil {
				glog.Errorf("[%s] send %v: %v", s.name, req.Message, err)
			}
			if req.Result != nil {
				select {
				case req.Result <- err:
				default:
				}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
