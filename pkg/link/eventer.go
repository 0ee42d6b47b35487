package link

import (
	"context"
	"io"
	"time"

	"github.com/robotalks/splitkb/pkg/framework"
)

// Eventer owns one reliable link over a transmitter and a receiver.
// It runs three tasks: the Sender, the OutboundProcessor and the
// InboundProcessor.
type Eventer struct {
	conf     Config
	outbound chan Envelope
	inbound  chan Message
	requests chan Request
	waiters  *WaiterRegistry
	ids      *IDGenerator

	sender *Sender
	out    *OutboundProcessor
	in     *InboundProcessor
}

// NewEventer creates an Eventer. Payloads of received commands are
// decoded with dec.
func NewEventer(tx io.Writer, rx io.Reader, dec Decoder, conf Config) *Eventer {
	conf = conf.withDefaults()
	e := &Eventer{
		conf:     conf,
		outbound: make(chan Envelope, conf.OutboundQueueSize),
		inbound:  make(chan Message, conf.InboundQueueSize),
		requests: make(chan Request, conf.RequestQueueSize),
		waiters:  NewWaiterRegistry(conf.WaiterCapacity),
		ids:      NewIDGenerator(conf.FirstID),
	}
	e.sender = e.NewSender()
	e.sender.requests = e.requests
	e.out = &OutboundProcessor{
		tx:       tx,
		queue:    e.outbound,
		maxFrame: conf.MaxFrameSize,
		metrics:  conf.Metrics,
		name:     conf.Name,
	}
	e.in = &InboundProcessor{
		rx:       rx,
		decoder:  dec,
		outbound: e.outbound,
		deliver:  e.inbound,
		waiters:  e.waiters,
		metrics:  conf.Metrics,
		name:     conf.Name,
		acc:      Accumulator{Limit: conf.MaxFrameSize},
	}
	return e
}

// Name returns the name of the link.
func (e *Eventer) Name() string {
	return e.conf.Name
}

// Metrics returns the metrics of the link.
func (e *Eventer) Metrics() *Metrics {
	return e.conf.Metrics
}

// NewSender creates a Sender sharing the id generator, waiters and
// outbound queue of the Eventer. It can be used directly by any number
// of goroutines.
func (e *Eventer) NewSender() *Sender {
	return &Sender{
		name:     e.conf.Name,
		ids:      e.ids,
		waiters:  e.waiters,
		outbound: e.outbound,
		maxFrame: e.conf.MaxFrameSize,
		metrics:  e.conf.Metrics,
		tracer:   e.conf.Tracer,
	}
}

// Tasks returns the three tasks to be driven by the caller.
func (e *Eventer) Tasks() []framework.Runnable {
	return []framework.Runnable{e.sender, e.out, e.in}
}

// Run drives the tasks until ctx is done or one of them fails.
func (e *Eventer) Run(ctx context.Context) error {
	runner := framework.NewRunnerWith(ctx)
	runner.StopOnExit = true
	return runner.Go(e.Tasks()...).Wait()
}

// Requests returns the queue served by the Sender task.
func (e *Eventer) Requests() chan<- Request {
	return e.requests
}

// Inbound returns validated messages received from the peer.
func (e *Eventer) Inbound() <-chan Message {
	return e.inbound
}

// InFlight returns the number of commands waiting for an ack.
func (e *Eventer) InFlight() int {
	return e.waiters.Len()
}

// Send delivers msg directly, bypassing the request queue.
func (e *Eventer) Send(ctx context.Context, msg Message, timeout time.Duration) error {
	return e.NewSender().Send(ctx, msg, timeout)
}

// Enqueue queues msg for the Sender task, waiting for room.
func (e *Eventer) Enqueue(ctx context.Context, msg Message, timeout time.Duration) error {
	select {
	case e.requests <- Request{Message: msg, Timeout: timeout}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue queues msg for the Sender task unless the queue is full.
func (e *Eventer) TryEnqueue(msg Message, timeout time.Duration) bool {
	select {
	case e.requests <- Request{Message: msg, Timeout: timeout}:
		return true
	default:
		return false
	}
}
