// Package gateway pushes keyboard statistics to a Prometheus push gateway.
package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/robotalks/splitkb/pkg/messages"
)

// Defaults of Pusher.
const (
	DefaultJob      = "splitkb"
	DefaultInterval = 5 * time.Second
)

// StatsFunc fetches statistics from a keyboard.
type StatsFunc func(ctx context.Context) (messages.Stats, error)

// Pusher periodically fetches Stats and pushes them.
type Pusher struct {
	Interval time.Duration
	Stats    StatsFunc

	keypresses atomic.Uint32
	pusher     *push.Pusher
}

// NewPusher creates a Pusher for the gateway at url, grouped by host.
func NewPusher(url, host string, stats StatsFunc) *Pusher {
	p := &Pusher{Interval: DefaultInterval, Stats: stats}
	counter := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "keyboard_keypresses_total",
		Help: "Keypresses counted by the keyboard",
	}, func() float64 {
		return float64(p.keypresses.Load())
	})
	p.pusher = push.New(url, DefaultJob).
		Collector(counter).
		Grouping("host", host)
	return p
}

// PushOnce fetches the stats and pushes them.
func (p *Pusher) PushOnce(ctx context.Context) error {
	stats, err := p.Stats(ctx)
	if err != nil {
		return err
	}
	p.keypresses.Store(stats.Keypresses)
	return p.pusher.PushContext(ctx)
}

// Run implements framework.Runnable. Failures are logged and retried on
// the next interval.
func (p *Pusher) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := p.PushOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("push stats: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
