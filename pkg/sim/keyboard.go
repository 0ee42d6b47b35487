package sim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/splitkb/pkg/env"
	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/half"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
	"github.com/robotalks/splitkb/pkg/telemetry/mqtt"
	"github.com/robotalks/splitkb/pkg/transport"
)

// Keyboard is a simulated split keyboard.
type Keyboard struct {
	Config    Config
	Primary   *half.Primary
	Secondary *half.Secondary
	Registry  *prometheus.Registry

	primaryLoop   *fx.Loop
	secondaryLoop *fx.Loop
	links         [2]*transport.LossyReadWriter
	hostMetrics   *link.Metrics
	// hostCtx bounds host links served by Handler, canceled when Run
	// returns.
	hostCtx  context.Context
	stopHost context.CancelFunc
}

// Name implements fx.Named.
func (k *Keyboard) Name() string {
	return "keyboard"
}

// New assembles a keyboard from conf.
func (c *Config) New() *Keyboard {
	a, b := transport.Pipe()
	k := &Keyboard{
		Config:   *c,
		Registry: prometheus.NewRegistry(),
		links: [2]*transport.LossyReadWriter{
			transport.NewLossyReadWriter(a, c.lossy(0)),
			transport.NewLossyReadWriter(b, c.lossy(1)),
		},
	}
	k.hostCtx, k.stopHost = context.WithCancel(context.Background())
	sub := link.NewEventer(k.links[0], k.links[0], messages.SubToDomDecoder, link.Config{
		Name:    "sub",
		Metrics: link.NewMetrics(k.Registry, "sub"),
	})
	dom := link.NewEventer(k.links[1], k.links[1], messages.DomToSubDecoder, link.Config{
		Name:    "dom",
		Metrics: link.NewMetrics(k.Registry, "dom"),
	})
	k.hostMetrics = link.NewMetrics(k.Registry, "host")
	k.Primary = half.NewPrimary(sub, half.DefaultPrimaryConfig())
	k.Secondary = half.NewSecondary(dom, half.DefaultSecondaryConfig())
	k.Secondary.OnReset = func() { glog.Info("secondary reset") }

	k.Registry.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: link.MetricsNamespace,
			Name:      "keypresses_total",
			Help:      "Keypresses counted by the primary half",
		}, func() float64 {
			return float64(k.Primary.Stats().Keypresses)
		}),
	)
	k.primaryLoop = fx.NewLoop().Add(k.Primary)
	k.secondaryLoop = fx.NewLoop().Add(k.Secondary)
	if c.LoopInterval > 0 {
		k.primaryLoop.Interval = c.LoopInterval
		k.secondaryLoop.Interval = c.LoopInterval
	}
	return k
}

// LinkStats returns the faults injected from the primary and the secondary.
func (k *Keyboard) LinkStats() (primary, secondary transport.LossyStats) {
	return k.links[0].Stats(), k.links[1].Stats()
}

// Handler returns the HTTP routes of the keyboard.
func (k *Keyboard) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(k.Registry, promhttp.HandlerOpts{}))
	r.Handle("/host", transport.WSHandler(k.serveHost))
	r.Get("/stats", k.getStats)
	r.Get("/display/{side}", k.getDisplay)
	r.Post("/reset", k.postReset)
	return r
}

func (k *Keyboard) serveHost(rw io.ReadWriteCloser) {
	err := k.Primary.ServeHost(k.hostCtx, rw, link.Config{
		Name:    "host",
		Metrics: k.hostMetrics,
	})
	if err != nil && !errors.Is(err, io.EOF) {
		glog.Warningf("host link: %v", err)
	}
}

type statsResponse struct {
	Keypresses uint32                  `json:"keypresses"`
	LEDs       [2]uint16               `json:"leds"`
	Links      [2]transport.LossyStats `json:"links"`
}

func (k *Keyboard) getStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	resp.Keypresses = k.Primary.Stats().Keypresses
	resp.LEDs = [2]uint16{k.Primary.LEDCounter(), k.Secondary.LEDCounter()}
	resp.Links[0], resp.Links[1] = k.LinkStats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&resp)
}

func (k *Keyboard) getDisplay(w http.ResponseWriter, r *http.Request) {
	side, err := messages.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	display := k.Primary.Display
	if side == messages.Right {
		display = k.Secondary.Display
	}
	fb, ok := display.(*half.Framebuffer)
	if !ok {
		http.Error(w, "display not readable", http.StatusNotImplemented)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, fb.String())
}

func (k *Keyboard) postReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := k.Primary.ResetSecondary(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tasks returns the Runnables of the keyboard.
func (k *Keyboard) Tasks() ([]fx.Runnable, error) {
	tasks := []fx.Runnable{
		fx.NamedRun("primary", k.primaryLoop),
		fx.NamedRun("secondary", k.secondaryLoop),
	}
	if k.Config.TypingInterval > 0 {
		tasks = append(tasks,
			fx.NamedRun("typist/left", half.NewTypist(k.Primary, k.Config.TypingInterval, k.Config.Seed)),
			fx.NamedRun("typist/right", half.NewTypist(k.Secondary, k.Config.TypingInterval, k.Config.Seed+1)),
		)
	}
	if k.Config.Listen != "" {
		srv := &http.Server{Addr: k.Config.Listen, Handler: k.Handler()}
		tasks = append(tasks, fx.NamedRun("http", fx.RunFunc(func(ctx context.Context) error {
			glog.Infof("listening on %s", srv.Addr)
			return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
		})))
	}
	if k.Config.MQTTURL != "" {
		hostID := k.Config.HostID
		if hostID == "" {
			hostID = env.MachineID()
		}
		pub, err := mqtt.NewPublisher(k.Config.MQTTURL, hostID)
		if err != nil {
			return nil, errors.Wrap(err, "mqtt publisher")
		}
		pub.Keys = k.Primary.Keys()
		pub.Stats = k.Primary.Stats
		tasks = append(tasks, fx.NamedRun("mqtt", pub))
	}
	return tasks, nil
}

// Run implements fx.Runnable.
func (k *Keyboard) Run(ctx context.Context) error {
	defer k.stopHost()
	tasks, err := k.Tasks()
	if err != nil {
		return err
	}
	defer k.links[0].Close()
	runner := fx.NewRunnerWith(ctx)
	runner.StopOnExit = true
	return runner.Go(tasks...).Wait()
}
