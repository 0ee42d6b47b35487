package half

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
)

// SecondaryConfig defines the timings of the secondary half.
type SecondaryConfig struct {
	KeyTimeout  time.Duration
	LEDInterval time.Duration
	KeyEvents   int
}

// DefaultSecondaryConfig returns the firmware timings.
func DefaultSecondaryConfig() SecondaryConfig {
	return SecondaryConfig{
		KeyTimeout:  10 * time.Millisecond,
		LEDInterval: time.Second / 30,
		KeyEvents:   64,
	}
}

// Secondary is the half connected only to the primary.
type Secondary struct {
	Config  SecondaryConfig
	Display Display
	// OnReset is called when the primary asks for a reset.
	OnReset func()

	dom  *link.Eventer
	keys chan KeyEvent

	total atomic.Uint32
	leds  atomic.Uint32

	counter Counter
	target  Counter
	ledTick ticker
}

// NewSecondary creates the secondary half talking to the primary over dom.
// dom must decode messages.DomToSub.
func NewSecondary(dom *link.Eventer, conf SecondaryConfig) *Secondary {
	return &Secondary{
		Config:  conf,
		Display: NewFramebuffer(),
		dom:     dom,
		keys:    make(chan KeyEvent, conf.KeyEvents),
		ledTick: ticker{interval: conf.LEDInterval},
	}
}

// AddToLoop implements fx.LoopAdder.
func (s *Secondary) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(
		fx.NamedRun("secondary/link", s.dom),
		&inboxPump{name: "secondary/inbox", inbox: s.dom.Inbound()},
	)
	loop.AddController(
		fx.ControlFunc(s.handleMessages),
		fx.ControlFunc(s.animateLEDs),
	)
}

// Press sends a key press to the primary, waiting for room in the
// request queue.
func (s *Secondary) Press(ctx context.Context, x, y uint8) error {
	if err := s.dom.Enqueue(ctx, messages.KeyPressedAt(x, y), s.Config.KeyTimeout); err != nil {
		return err
	}
	s.total.Add(1)
	sendKey(s.keys, KeyEvent{Side: messages.Right, X: x, Y: y, Pressed: true, Time: time.Now()})
	return nil
}

// Release sends a key release to the primary.
func (s *Secondary) Release(ctx context.Context, x, y uint8) error {
	if err := s.dom.Enqueue(ctx, messages.KeyReleasedAt(x, y), s.Config.KeyTimeout); err != nil {
		return err
	}
	sendKey(s.keys, KeyEvent{Side: messages.Right, X: x, Y: y, Time: time.Now()})
	return nil
}

// Keys returns local key events.
func (s *Secondary) Keys() <-chan KeyEvent {
	return s.keys
}

// Stats returns the keypresses known to this half: its own plus those
// synced from the primary.
func (s *Secondary) Stats() messages.Stats {
	return messages.Stats{Keypresses: s.total.Load()}
}

// LEDCounter returns the current LED animation frame.
func (s *Secondary) LEDCounter() uint16 {
	return uint16(s.leds.Load())
}

func (s *Secondary) handleMessages(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		switch msg := mc.CurrentMessage().(type) {
		case messages.ResyncLeds:
			glog.V(2).Infof("led counter target %d", msg.Counter)
			s.target = Counter(msg.Counter)
		case messages.Reset:
			glog.Info("reset requested")
			s.reset()
		case messages.SyncKeypresses:
			if msg.Count != 0 {
				s.total.Add(uint32(msg.Count))
			}
		case messages.WritePixels:
			s.Display.WriteRow(msg.Row, msg.Data0, msg.Data1)
		default:
			return
		}
		mc.MessageTaken()
	}))
	return nil
}

func (s *Secondary) reset() {
	s.total.Store(0)
	s.counter, s.target = 0, 0
	s.leds.Store(0)
	if fn := s.OnReset; fn != nil {
		fn()
	}
}

func (s *Secondary) animateLEDs(cc fx.ControlContext) error {
	if s.ledTick.due(cc.Time()) {
		s.stepLEDs()
	}
	return nil
}

// stepLEDs advances one frame, converging on the primary's counter.
func (s *Secondary) stepLEDs() {
	s.counter.Inc()
	primary := s.target
	s.target.Inc()
	if delta := primary.Delta(s.counter); delta != 0 {
		s.counter.Add(Correction(delta))
	}
	s.leds.Store(uint32(s.counter))
}
