package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/robotalks/splitkb/pkg/half"
	"github.com/robotalks/splitkb/pkg/messages"
)

// Topic suffixes under <prefix><host-id>/.
const (
	TopicKeys  = "keys"
	TopicStats = "stats"
	TopicMeta  = "meta"
)

// DefaultStatsInterval is how often stats are published.
const DefaultStatsInterval = 5 * time.Second

// StatsFunc samples the current stats.
type StatsFunc func() messages.Stats

// Publisher publishes key events and periodic stats of a keyboard.
type Publisher struct {
	Queue    *Queue
	HostID   string
	Interval time.Duration
	Keys     <-chan half.KeyEvent
	Stats    StatsFunc
}

// NewPublisher creates a Publisher for the broker at brokerURL. The
// retained meta topic is cleared by the broker when the connection is
// lost.
func NewPublisher(brokerURL, hostID string) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+hostID+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("splitkb:" + hostID)
	}
	p := &Publisher{
		Queue:    NewQueue(opts, topicPrefix),
		HostID:   hostID,
		Interval: DefaultStatsInterval,
	}
	p.Queue.OnConnect = func(*Queue) { p.publishMeta(true) }
	return p, nil
}

// Topic returns the full topic of a suffix, without the queue prefix.
func (p *Publisher) Topic(suffix string) string {
	return p.HostID + "/" + suffix
}

// Run implements fx.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Queue.Connect(ctx); err != nil {
		return err
	}
	defer p.Queue.Close()

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.publishMeta(false).Wait()
			return ctx.Err()
		case evt := <-p.Keys:
			p.publish(TopicKeys, KeyEventStruct(evt))
		case <-statsTicker.C:
			if p.Stats != nil {
				p.publish(TopicStats, StatsStruct(p.Stats()))
			}
		}
	}
}

func (p *Publisher) publishMeta(online bool) paho.Token {
	if !online {
		return p.Queue.PubWith(p.Topic(TopicMeta), nil, 1, true)
	}
	meta, err := structpb.NewStruct(map[string]interface{}{
		"host":    p.HostID,
		"started": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		panic(err)
	}
	data, err := proto.Marshal(meta)
	if err != nil {
		panic(err)
	}
	return p.Queue.PubWith(p.Topic(TopicMeta), data, 1, true)
}

func (p *Publisher) publish(suffix string, msg *structpb.Struct) {
	data, err := proto.Marshal(msg)
	if err != nil {
		glog.Errorf("marshal %s: %v", suffix, err)
		return
	}
	p.Queue.Pub(p.Topic(suffix), data)
}

// KeyEventStruct converts a key event to its telemetry form.
func KeyEventStruct(evt half.KeyEvent) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"side":    structpb.NewStringValue(evt.Side.String()),
		"x":       structpb.NewNumberValue(float64(evt.X)),
		"y":       structpb.NewNumberValue(float64(evt.Y)),
		"pressed": structpb.NewBoolValue(evt.Pressed),
		"time":    structpb.NewStringValue(evt.Time.UTC().Format(time.RFC3339Nano)),
	}}
}

// StatsStruct converts stats to their telemetry form.
func StatsStruct(stats messages.Stats) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"keypresses": structpb.NewNumberValue(float64(stats.Keypresses)),
	}}
}

// DecodeStruct parses a telemetry payload.
func DecodeStruct(payload []byte) (*structpb.Struct, error) {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
