package half

import (
	"context"
	"time"

	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
)

// KeyEvent is a key press or release on either half.
type KeyEvent struct {
	Side    messages.Side
	X, Y    uint8
	Pressed bool
	Time    time.Time
}

// localKey is posted to the loop for a key on this half.
type localKey struct {
	x, y    uint8
	pressed bool
}

// inboxPump posts the messages received from a link to the loop.
type inboxPump struct {
	name  string
	inbox <-chan link.Message
}

func (p *inboxPump) Name() string {
	return p.name
}

func (p *inboxPump) Run(ctx context.Context) error {
	ctl := fx.LoopCtlFrom(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.inbox:
			ctl.PostMessage(msg)
			ctl.TriggerNext()
		}
	}
}

// ticker fires once per interval when polled from a controller.
type ticker struct {
	interval time.Duration
	next     time.Time
}

func (t *ticker) due(now time.Time) bool {
	if t.next.IsZero() {
		t.next = now.Add(t.interval)
		return false
	}
	if now.Before(t.next) {
		return false
	}
	t.next = t.next.Add(t.interval)
	if t.next.Before(now) {
		t.next = now.Add(t.interval)
	}
	return true
}

func sendKey(ch chan<- KeyEvent, evt KeyEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- evt:
	default:
	}
}
