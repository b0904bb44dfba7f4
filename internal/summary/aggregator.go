// Package summary aggregates per-upstream payment totals for a time range,
// preferring each processor's own admin ledger and falling back to the
// local store when the admin endpoint is unavailable.
package summary

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/upstream"
)

// Amount renders with exactly two decimals on the wire.
type Amount float64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Totals is one upstream's slice of the summary.
type Totals struct {
	TotalRequests int    `json:"totalRequests"`
	TotalAmount   Amount `json:"totalAmount"`
}

// Report is the full payments-summary response body.
type Report struct {
	Default  Totals `json:"default"`
	Fallback Totals `json:"fallback"`
}

// Aggregator builds Reports from admin endpoints plus the local store.
type Aggregator struct {
	client *upstream.Client
	pool   *store.Pool

	defaultURL  string
	fallbackURL string

	log zerolog.Logger
}

// New wires an Aggregator.
func New(client *upstream.Client, pool *store.Pool, defaultURL, fallbackURL string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		client:      client,
		pool:        pool,
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
		log:         log.With().Str("component", "summary").Logger(),
	}
}

// Summarize resolves totals for [from, to], each upstream independently.
// The admin endpoint is asked first so that payments acknowledged upstream
// but not yet drained by the write queue are not missed.
func (a *Aggregator) Summarize(ctx context.Context, from, to string) Report {
	return Report{
		Default:  a.totalsFor(ctx, store.ServiceDefault, a.defaultURL, from, to),
		Fallback: a.totalsFor(ctx, store.ServiceFallback, a.fallbackURL, from, to),
	}
}

func (a *Aggregator) totalsFor(ctx context.Context, svc store.Service, baseURL, from, to string) Totals {
	admin, err := a.client.FetchAdminSummary(ctx, baseURL, from, to)
	if err == nil {
		return Totals{TotalRequests: admin.TotalRequests, TotalAmount: Amount(admin.TotalAmount)}
	}
	a.log.Warn().Err(err).Str("service", string(svc)).Msg("admin summary indisponível, usando banco local")
	return a.localTotals(ctx, svc, from, to)
}

func (a *Aggregator) localTotals(ctx context.Context, svc store.Service, from, to string) Totals {
	h, err := a.pool.Acquire(ctx)
	if err != nil {
		a.log.Error().Err(err).Str("service", string(svc)).Msg("sem handle para o resumo local")
		return Totals{}
	}
	defer a.pool.Release(h)

	count, err := h.TotalCount(svc, from, to)
	if err != nil {
		a.log.Error().Err(err).Str("service", string(svc)).Msg("falha ao contar pagamentos")
		return Totals{}
	}
	amount, err := h.TotalAmount(svc, from, to)
	if err != nil {
		a.log.Error().Err(err).Str("service", string(svc)).Msg("falha ao somar pagamentos")
		return Totals{}
	}
	return Totals{TotalRequests: count, TotalAmount: Amount(amount)}
}
