package link

import (
	"context"
	"io"
	"os"

	"github.com/golang/glog"
)

// InboundProcessor is the single reader of the receiver.
type InboundProcessor struct {
	rx       io.Reader
	decoder  Decoder
	outbound chan<- Envelope
	deliver  chan<- Message
	waiters  *WaiterRegistry
	metrics  *Metrics
	name     string

	acc Accumulator
}

// Name implements framework.Named.
func (p *InboundProcessor) Name() string {
	return p.name + "/in"
}

// Run implements framework.Runnable. It returns when the receiver fails,
// e.g. io.EOF once the transport is closed.
func (p *InboundProcessor) Run(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.readLoop(readCtx, byteCh, errCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case b := <-byteCh:
			if err := p.feed(ctx, b); err != nil {
				return err
			}
		}
	}
}

func (p *InboundProcessor) readLoop(ctx context.Context, byteCh chan<- byte, errCh chan<- error) {
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(p.rx, buf); err != nil {
			if os.IsTimeout(err) {
				continue
			}
			errCh <- err
			return
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (p *InboundProcessor) feed(ctx context.Context, b byte) error {
	fr := p.acc.Feed(b)
	switch fr.Status {
	case FeedOversized:
		glog.Warningf("[%s] frame exceeds %d bytes, resync", p.name, p.acc.Limit)
		p.metrics.frameError(ReasonOversized)
	case FeedMalformed:
		glog.Warningf("[%s] malformed frame, resync", p.name)
		p.metrics.frameError(ReasonMalformed)
	case FeedFrameReady:
		p.metrics.FramesReceived.Inc()
		return p.handleFrame(ctx, fr.Frame)
	}
	return nil
}

func (p *InboundProcessor) handleFrame(ctx context.Context, frame []byte) error {
	env, err := UnmarshalEnvelope(frame)
	if err != nil {
		glog.Warningf("[%s] %v: % x", p.name, &DecodeError{Stage: "envelope", Err: err}, frame)
		p.metrics.frameError(ReasonEnvelope)
		return nil
	}
	switch env.Kind {
	case KindCommand:
		return p.handleCommand(ctx, env)
	case KindAck:
		p.handleAck(env)
	}
	return nil
}

func (p *InboundProcessor) handleCommand(ctx context.Context, env Envelope) error {
	msg, err := p.decoder.DecodeMessage(env.Payload)
	if err != nil {
		glog.Warningf("[%s] %v: %v", p.name, &DecodeError{Stage: "payload", Err: err}, env)
		p.metrics.frameError(ReasonDecode)
		return nil
	}
	if err := env.Verify(); err != nil {
		glog.Warningf("[%s] %v: %v, expected csum %#02x",
			p.name, err, env, CommandChecksum(env.Payload, env.ID))
		p.metrics.frameError(ReasonChecksum)
		return nil
	}
	glog.V(2).Infof("[%s] received command %v: %v", p.name, env, msg)
	select {
	case p.outbound <- env.Ack():
		p.metrics.AcksSent.Inc()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case p.deliver <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *InboundProcessor) handleAck(env Envelope) {
	if err := env.Verify(); err != nil {
		glog.Warningf("[%s] %v: %v", p.name, err, env)
		p.metrics.frameError(ReasonChecksum)
		return
	}
	if !p.waiters.Resolve(env.ID) {
		glog.V(2).Infof("[%s] unmatched %v", p.name, env)
		p.metrics.AcksUnmatched.Inc()
		return
	}
	p.metrics.InFlight.Set(float64(p.waiters.Len()))
	glog.V(2).Infof("[%s] received %v", p.name, env)
}
