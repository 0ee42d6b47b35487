package link

import "sync/atomic"

// ID correlates a Command with its Ack. It is unique only among the
// commands in flight at the same time.
type ID uint8

// IDGenerator hands out wrapping ids. It is safe for concurrent use.
type IDGenerator struct {
	next uint32
}

// NewIDGenerator creates a generator whose first id is first.
func NewIDGenerator(first ID) *IDGenerator {
	return &IDGenerator{next: uint32(first)}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() ID {
	return ID(atomic.AddUint32(&g.next, 1) - 1)
}

// Peek returns the id the next call to Next will return.
func (g *IDGenerator) Peek() ID {
	return ID(atomic.LoadUint32(&g.next))
}
