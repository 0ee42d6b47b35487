package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignal(t *testing.T) {
	s := NewSignal()
	require.False(t, s.Fired())
	require.True(t, s.Fire())
	require.False(t, s.Fire())
	require.True(t, s.Fired())
	<-s.Done()
}

func TestWaiterRegistry(t *testing.T) {
	r := NewWaiterRegistry(2)
	require.Equal(t, 2, r.Cap())
	s1 := r.Register(1)
	r.Register(2)
	require.Equal(t, 2, r.Len())
	require.Panics(t, func() { r.Register(3) })
	require.Panics(t, func() { r.Register(1) })

	require.True(t, r.Resolve(1))
	require.True(t, s1.Fired())
	require.False(t, r.Has(1))
	require.False(t, r.Resolve(1))

	require.True(t, r.Deregister(2))
	require.False(t, r.Deregister(2))
	require.Equal(t, 0, r.Len())
}
