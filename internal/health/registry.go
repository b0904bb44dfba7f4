// Package health tracks the observed health of both payment processors.
// The registry owns the in-memory snapshot; the prober is its only writer.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/clock"
	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
)

// Status is the health of one upstream at an instant.
type Status struct {
	Failing         bool
	MinResponseTime int
	LastCheck       time.Time
}

// Snapshot pairs both upstreams. Readers always receive the two together,
// taken from a single atomic load, so a request can never observe a torn
// mix of old and new data.
type Snapshot struct {
	Default  Status
	Fallback Status
}

// Registry holds the current snapshot and mirrors every update to the
// service_health_check table so health survives restarts.
type Registry struct {
	snap atomic.Pointer[Snapshot]
	pool *store.Pool
	log  zerolog.Logger
}

// NewRegistry starts with both upstreams healthy and unmeasured.
func NewRegistry(pool *store.Pool, log zerolog.Logger) *Registry {
	r := &Registry{
		pool: pool,
		log:  log.With().Str("component", "health").Logger(),
	}
	r.snap.Store(&Snapshot{})
	return r
}

// Snapshot returns the current pair of statuses.
func (r *Registry) Snapshot() Snapshot {
	return *r.snap.Load()
}

// Update publishes a new status for svc by swapping a fresh snapshot in,
// then persists the mirror row. A persistence failure is logged; the
// in-memory snapshot stays authoritative.
func (r *Registry) Update(svc store.Service, st Status) {
	for {
		old := r.snap.Load()
		next := *old
		if svc == store.ServiceFallback {
			next.Fallback = st
		} else {
			next.Default = st
		}
		if r.snap.CompareAndSwap(old, &next) {
			break
		}
	}
	r.persist(svc, st)
}

func (r *Registry) persist(svc store.Service, st Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := r.pool.Acquire(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("service", string(svc)).Msg("sem handle para persistir health check")
		return
	}
	defer r.pool.Release(h)

	row := store.HealthRow{
		Failing:         st.Failing,
		MinResponseTime: st.MinResponseTime,
		LastCheck:       clock.Format(st.LastCheck),
	}
	if err := h.SaveHealth(svc, row); err != nil {
		r.log.Warn().Err(err).Str("service", string(svc)).Msg("falha ao persistir health check")
	}
}

// Seed loads the persisted mirror into the registry. Rows with an empty
// lastCheck are the migration placeholders and are skipped.
func (r *Registry) Seed(ctx context.Context) error {
	h, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer r.pool.Release(h)

	rows, err := h.LoadHealth()
	if err != nil {
		return err
	}

	snap := Snapshot{}
	for svc, row := range rows {
		if row.LastCheck == "" {
			continue
		}
		lastCheck, err := clock.Parse(row.LastCheck)
		if err != nil {
			r.log.Warn().Err(err).Str("service", string(svc)).Msg("lastCheck inválido no banco, ignorando")
			continue
		}
		st := Status{
			Failing:         row.Failing,
			MinResponseTime: row.MinResponseTime,
			LastCheck:       lastCheck,
		}
		if svc == store.ServiceFallback {
			snap.Fallback = st
		} else {
			snap.Default = st
		}
	}
	r.snap.Store(&snap)
	return nil
}
