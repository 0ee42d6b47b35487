package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/splitkb/pkg/messages"
)

type gatewayRecorder struct {
	lock   sync.Mutex
	paths  []string
	bodies [][]byte
}

func (g *gatewayRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	g.lock.Lock()
	g.paths = append(g.paths, r.Method+" "+r.URL.Path)
	g.bodies = append(g.bodies, body)
	g.lock.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (g *gatewayRecorder) count() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return len(g.paths)
}

func TestPushOnce(t *testing.T) {
	rec := &gatewayRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	p := NewPusher(srv.URL, "desk", func(context.Context) (messages.Stats, error) {
		return messages.Stats{Keypresses: 42}, nil
	})
	require.NoError(t, p.PushOnce(context.Background()))
	require.Equal(t, []string{"PUT /metrics/job/splitkb/host/desk"}, rec.paths)
	require.Contains(t, string(rec.bodies[0]), "keyboard_keypresses_total")
}

func TestPushStatsError(t *testing.T) {
	rec := &gatewayRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	p := NewPusher(srv.URL, "desk", func(context.Context) (messages.Stats, error) {
		return messages.Stats{}, errors.New("no keyboard")
	})
	require.EqualError(t, p.PushOnce(context.Background()), "no keyboard")
	require.Zero(t, rec.count())
}

func TestRunPushesPeriodically(t *testing.T) {
	rec := &gatewayRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	p := NewPusher(srv.URL, "desk", func(context.Context) (messages.Stats, error) {
		return messages.Stats{Keypresses: 1}, nil
	})
	p.Interval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
