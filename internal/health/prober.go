package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/clock"
	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/upstream"
)

// Prober samples both processors on a fixed cadence and feeds the registry.
// A failed probe is treated as absence of news: the previous status for
// that upstream is kept unchanged.
type Prober struct {
	registry *Registry
	client   *upstream.Client

	defaultURL  string
	fallbackURL string
	interval    time.Duration

	log  zerolog.Logger
	stop chan struct{}
	done chan struct{}
}

// NewProber wires a prober; call Start to begin probing.
func NewProber(registry *Registry, client *upstream.Client, defaultURL, fallbackURL string, interval time.Duration, log zerolog.Logger) *Prober {
	return &Prober{
		registry:    registry,
		client:      client,
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
		interval:    interval,
		log:         log.With().Str("component", "prober").Logger(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the probe loop on its own goroutine. The first tick runs
// immediately so routing has data before the first interval elapses.
func (p *Prober) Start() {
	go func() {
		defer close(p.done)

		p.Tick(context.Background())

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Tick(context.Background())
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to finish.
func (p *Prober) Stop() {
	close(p.stop)
	<-p.done
}

// Tick probes both upstreams in sequence, default first.
func (p *Prober) Tick(ctx context.Context) {
	p.probe(ctx, store.ServiceDefault, p.defaultURL)
	p.probe(ctx, store.ServiceFallback, p.fallbackURL)
}

func (p *Prober) probe(ctx context.Context, svc store.Service, baseURL string) {
	status, err := p.client.ServiceHealth(ctx, baseURL)
	if err != nil {
		p.log.Warn().Err(err).Str("service", string(svc)).Msg("probe falhou, mantendo snapshot anterior")
		return
	}
	p.registry.Update(svc, Status{
		Failing:         bool(status.Failing),
		MinResponseTime: status.MinResponseTime,
		LastCheck:       clock.NowUTC(),
	})
}
