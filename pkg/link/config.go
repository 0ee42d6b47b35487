package link

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Default queue sizes, matching the firmware channels.
const (
	DefaultOutboundQueueSize = 16
	DefaultInboundQueueSize  = 16
	DefaultRequestQueueSize  = 4
)

// TracerName names the tracer used for sends.
const TracerName = "github.com/robotalks/splitkb/pkg/link"

// Config sizes the resources owned by an Eventer. Zero fields take the
// defaults.
type Config struct {
	// Name identifies the link in logs and metrics, e.g. "sub" or "host".
	Name string
	// MaxFrameSize bounds an encoded frame, delimiter included.
	MaxFrameSize int
	// OutboundQueueSize bounds envelopes waiting for the transmitter.
	OutboundQueueSize int
	// InboundQueueSize bounds validated messages waiting for the application.
	InboundQueueSize int
	// RequestQueueSize bounds requests waiting for the Sender task.
	RequestQueueSize int
	// WaiterCapacity bounds commands in flight.
	WaiterCapacity int
	// FirstID is the first id handed out.
	FirstID ID

	Metrics *Metrics
	Tracer  trace.Tracer
}

// DefaultConfig returns a Config with defaults for the named link.
func DefaultConfig(name string) Config {
	return Config{Name: name}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "link"
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = MaxFrameSize
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = DefaultOutboundQueueSize
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = DefaultInboundQueueSize
	}
	if c.RequestQueueSize <= 0 {
		c.RequestQueueSize = DefaultRequestQueueSize
	}
	if c.WaiterCapacity <= 0 {
		c.WaiterCapacity = DefaultWaiterCapacity
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil, c.Name)
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(TracerName)
	}
	return c
}
