package link

import (
	"context"
	"io"

	"github.com/golang/glog"
)

// OutboundProcessor is the single writer of the transmitter.
type OutboundProcessor struct {
	tx       io.Writer
	queue    <-chan Envelope
	maxFrame int
	metrics  *Metrics
	name     string
}

// Name implements framework.Named.
func (p *OutboundProcessor) Name() string {
	return p.name + "/out"
}

// Run implements framework.Runnable. It transmits one envelope at a time,
// waiting for each write to complete.
func (p *OutboundProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-p.queue:
			p.transmit(env)
		}
	}
}

func (p *OutboundProcessor) transmit(env Envelope) {
	data, err := env.MarshalBinary()
	if err == nil {
		data, err = EncodeFrameLimit(data, p.maxFrame)
	}
	if err != nil {
		glog.Warningf("[%s] drop %v: %v", p.name, env, err)
		p.metrics.frameError(ReasonEncode)
		return
	}
	if _, err = p.tx.Write(data); err != nil {
		glog.Warningf("[%s] write %v: %v", p.name, env, err)
		p.metrics.frameError(ReasonWrite)
		return
	}
	p.metrics.FramesSent.Inc()
	glog.V(3).Infof("[%s] transmitted %v", p.name, env)
}
