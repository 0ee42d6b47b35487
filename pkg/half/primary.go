package half

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
)

// PrimaryConfig defines the timings of the primary half.
type PrimaryConfig struct {
	// SyncInterval is how often local keypresses are synced to the secondary.
	SyncInterval time.Duration
	// LEDInterval is the LED animation frame period.
	LEDInterval time.Duration
	// ResyncEvery is the number of LED frames between ResyncLeds.
	ResyncEvery uint16

	StatsTimeout  time.Duration
	PixelsTimeout time.Duration
	SyncTimeout   time.Duration
	ResyncTimeout time.Duration

	// KeyEvents is the capacity of the channel returned by Keys.
	KeyEvents int
}

// DefaultPrimaryConfig returns the firmware timings.
func DefaultPrimaryConfig() PrimaryConfig {
	return PrimaryConfig{
		SyncInterval:  100 * time.Millisecond,
		LEDInterval:   time.Second / 30,
		ResyncEvery:   128,
		StatsTimeout:  5 * time.Millisecond,
		PixelsTimeout: time.Millisecond,
		SyncTimeout:   5 * time.Millisecond,
		ResyncTimeout: 5 * time.Millisecond,
		KeyEvents:     64,
	}
}

// Primary is the half connected to the host.
type Primary struct {
	Config  PrimaryConfig
	Display Display

	sub  *link.Eventer
	host atomic.Pointer[link.Eventer]
	loop *fx.Loop
	keys chan KeyEvent

	total  atomic.Uint32
	local  atomic.Uint32
	leds   atomic.Uint32
	synced uint32

	syncTick ticker
	ledTick  ticker
}

// NewPrimary creates the primary half talking to the secondary over sub.
// sub must decode messages.SubToDom.
func NewPrimary(sub *link.Eventer, conf PrimaryConfig) *Primary {
	return &Primary{
		Config:   conf,
		Display:  NewFramebuffer(),
		sub:      sub,
		keys:     make(chan KeyEvent, conf.KeyEvents),
		syncTick: ticker{interval: conf.SyncInterval},
		ledTick:  ticker{interval: conf.LEDInterval},
	}
}

// AddToLoop implements fx.LoopAdder.
func (p *Primary) AddToLoop(loop *fx.Loop) {
	p.loop = loop
	loop.AddRunnable(
		fx.NamedRun("primary/link", p.sub),
		&inboxPump{name: "primary/inbox", inbox: p.sub.Inbound()},
	)
	loop.AddController(
		fx.ControlFunc(p.handleMessages),
		fx.ControlFunc(p.syncKeypresses),
		fx.ControlFunc(p.animateLEDs),
	)
}

// Press reports a local key press.
func (p *Primary) Press(ctx context.Context, x, y uint8) error {
	return p.postKey(ctx, localKey{x: x, y: y, pressed: true})
}

// Release reports a local key release.
func (p *Primary) Release(ctx context.Context, x, y uint8) error {
	return p.postKey(ctx, localKey{x: x, y: y})
}

func (p *Primary) postKey(ctx context.Context, key localKey) error {
	if p.loop == nil {
		return errors.New("primary not added to a loop")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.loop.PostMessage(key)
	p.loop.TriggerNext()
	return nil
}

// Keys returns key events of both halves. Events are dropped when the
// channel is full.
func (p *Primary) Keys() <-chan KeyEvent {
	return p.keys
}

// Stats returns the keypresses of both halves.
func (p *Primary) Stats() messages.Stats {
	return messages.Stats{Keypresses: p.total.Load()}
}

// LEDCounter returns the current LED animation frame.
func (p *Primary) LEDCounter() uint16 {
	return uint16(p.leds.Load())
}

// ResetSecondary asks the secondary to reset.
func (p *Primary) ResetSecondary(ctx context.Context) error {
	return p.sub.Enqueue(ctx, messages.Reset{}, p.Config.SyncTimeout)
}

// Log sends a line to the host if one is connected. It never blocks and
// returns false when the line is dropped.
func (p *Primary) Log(text string) bool {
	host := p.host.Load()
	if host == nil {
		return false
	}
	return host.TryEnqueue(messages.Log{Text: trimLog(text)}, p.Config.StatsTimeout)
}

// trimLog cuts text to MaxLogSize bytes without splitting a UTF-8 sequence.
func trimLog(text string) string {
	if len(text) <= messages.MaxLogSize {
		return text
	}
	n := messages.MaxLogSize
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

func (p *Primary) handleMessages(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		switch msg := mc.CurrentMessage().(type) {
		case localKey:
			if msg.pressed {
				p.local.Add(1)
			}
			p.keyEvent(KeyEvent{Side: messages.Left, X: msg.x, Y: msg.y, Pressed: msg.pressed, Time: cc.Time()})
		case messages.KeyPressed:
			x, y := msg.Coord()
			p.keyEvent(KeyEvent{Side: messages.Right, X: x, Y: y, Pressed: true, Time: cc.Time()})
		case messages.KeyReleased:
			x, y := msg.Coord()
			p.keyEvent(KeyEvent{Side: messages.Right, X: x, Y: y, Time: cc.Time()})
		default:
			return
		}
		mc.MessageTaken()
	}))
	return nil
}

func (p *Primary) keyEvent(evt KeyEvent) {
	if evt.Pressed {
		p.total.Add(1)
	}
	glog.V(3).Infof("key %s (%d, %d) pressed=%v", evt.Side, evt.X, evt.Y, evt.Pressed)
	sendKey(p.keys, evt)
}

func (p *Primary) syncKeypresses(cc fx.ControlContext) error {
	if !p.syncTick.due(cc.Time()) {
		return nil
	}
	current := p.local.Load()
	diff := current - p.synced
	if diff == 0 {
		return nil
	}
	if diff > 0xffff {
		diff = 0xffff
	}
	if !p.sub.TryEnqueue(messages.SyncKeypresses{Count: uint16(diff)}, p.Config.SyncTimeout) {
		glog.V(2).Infof("sync of %d keypresses deferred", diff)
		return nil
	}
	p.synced += diff
	return nil
}

func (p *Primary) animateLEDs(cc fx.ControlContext) error {
	if !p.ledTick.due(cc.Time()) {
		return nil
	}
	counter := Counter(p.leds.Load())
	counter.Inc()
	p.leds.Store(uint32(counter))
	if p.Config.ResyncEvery == 0 || uint16(counter)%p.Config.ResyncEvery != 0 {
		return nil
	}
	if !p.sub.TryEnqueue(messages.ResyncLeds{Counter: uint16(counter)}, p.Config.ResyncTimeout) {
		glog.V(2).Infof("resync leds %d dropped", counter)
	}
	return nil
}

// ServeHost runs the host link over rw until ctx is done or the
// connection fails. conf should name the link; the decoder is always
// messages.HostToKeyboardDecoder.
func (p *Primary) ServeHost(ctx context.Context, rw io.ReadWriter, conf link.Config) error {
	host := link.NewEventer(rw, rw, messages.HostToKeyboardDecoder, conf)
	if prev := p.host.Swap(host); prev != nil {
		glog.Warningf("host link %s replaced", prev.Name())
	}
	defer p.host.CompareAndSwap(host, nil)
	p.Log(fmt.Sprintf("splitkb primary, %d keypresses", p.total.Load()))

	runner := fx.NewRunnerWith(ctx)
	runner.StopOnExit = true
	runner.Go(
		fx.NamedRun(host.Name(), host),
		fx.NamedRun(host.Name()+"/bridge", fx.RunFunc(func(ctx context.Context) error {
			return p.bridge(ctx, host)
		})),
	)
	glog.Infof("host %s connected", host.Name())
	err := runner.Wait()
	glog.Infof("host %s disconnected: %v", host.Name(), err)
	return err
}

func (p *Primary) bridge(ctx context.Context, host *link.Eventer) error {
	for {
		var msg link.Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-host.Inbound():
		}
		var err error
		switch msg := msg.(type) {
		case messages.RequestStats:
			err = host.Enqueue(ctx, p.Stats(), p.Config.StatsTimeout)
		case messages.HostWritePixels:
			switch msg.Side {
			case messages.Left:
				p.Display.WriteRow(msg.Row, msg.Data0, msg.Data1)
			case messages.Right:
				err = p.sub.Enqueue(ctx, messages.WritePixels{
					Row:   msg.Row,
					Data0: msg.Data0,
					Data1: msg.Data1,
				}, p.Config.PixelsTimeout)
			}
		}
		if err != nil {
			return err
		}
	}
}
