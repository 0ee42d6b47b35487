package link

import (
	"fmt"
	"sync"
)

// DefaultWaiterCapacity bounds the commands in flight per Eventer.
const DefaultWaiterCapacity = 128

// WaiterRegistry maps in-flight ids to the Signal their sender waits on.
// The capacity is part of the protocol: it bounds the in-flight window
// well below the id space.
type WaiterRegistry struct {
	capacity int
	waiters  map[ID]*Signal
	lock     sync.Mutex
}

// NewWaiterRegistry creates a registry holding at most capacity waiters.
func NewWaiterRegistry(capacity int) *WaiterRegistry {
	if capacity <= 0 {
		capacity = DefaultWaiterCapacity
	}
	return &WaiterRegistry{
		capacity: capacity,
		waiters:  make(map[ID]*Signal, capacity),
	}
}

// Register creates the waiter for id. A duplicate id or a full registry
// means the in-flight window exceeded its bound; that is a programming
// error and panics.
func (r *WaiterRegistry) Register(id ID) *Signal {
	sig := NewSignal()
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exist := r.waiters[id]; exist {
		panic(fmt.Sprintf("duplicated waiter id %d", id))
	}
	if len(r.waiters) >= r.capacity {
		panic(fmt.Sprintf("waiter registry full (%d) registering id %d", r.capacity, id))
	}
	r.waiters[id] = sig
	return sig
}

// Deregister removes the waiter for id, returns false if there is none.
func (r *WaiterRegistry) Deregister(id ID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exist := r.waiters[id]; !exist {
		return false
	}
	delete(r.waiters, id)
	return true
}

// Resolve removes the waiter for id and wakes it. It returns false when
// no waiter exists, e.g. for a duplicated or late Ack.
func (r *WaiterRegistry) Resolve(id ID) bool {
	r.lock.Lock()
	sig, exist := r.waiters[id]
	if exist {
		delete(r.waiters, id)
	}
	r.lock.Unlock()
	if !exist {
		return false
	}
	sig.Fire()
	return true
}

// Has reports whether a waiter exists for id.
func (r *WaiterRegistry) Has(id ID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, exist := r.waiters[id]
	return exist
}

// Len returns the number of waiters.
func (r *WaiterRegistry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.waiters)
}

// Cap returns the capacity.
func (r *WaiterRegistry) Cap() int {
	return r.capacity
}
