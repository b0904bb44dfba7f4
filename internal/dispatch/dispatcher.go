// Package dispatch forwards one client payment to the upstream chosen by
// the router and records the outcome: enqueue to the write queue, remember
// for idempotent replay, respond.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/clock"
	"github.com/julianomacielferreira/garnize-on-juice/internal/dedupe"
	"github.com/julianomacielferreira/garnize-on-juice/internal/health"
	"github.com/julianomacielferreira/garnize-on-juice/internal/routing"
	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/upstream"
	"github.com/julianomacielferreira/garnize-on-juice/internal/writequeue"
)

// Enqueuer is the slice of the write queue the dispatcher needs.
type Enqueuer interface {
	Enqueue(store.Payment)
}

var _ Enqueuer = (*writequeue.Queue)(nil)

// Dispatcher handles POST /payments end to end.
type Dispatcher struct {
	registry *health.Registry
	client   *upstream.Client
	queue    Enqueuer
	dedupe   *dedupe.Store

	defaultURL  string
	fallbackURL string

	log zerolog.Logger
}

// New wires a Dispatcher. The queue is owned by the process root; the
// dispatcher only borrows it.
func New(registry *health.Registry, client *upstream.Client, queue Enqueuer, dedupeStore *dedupe.Store, defaultURL, fallbackURL string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		client:      client,
		queue:       queue,
		dedupe:      dedupeStore,
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
}

// Result is what the front-end writes back to the client.
type Result struct {
	Status int
	Body   []byte
}

// request uses pointers so absent and present-but-zero fields are told apart.
type request struct {
	CorrelationID *string  `json:"correlationId"`
	Amount        *float64 `json:"amount"`
}

func messageBody(format string, args ...any) []byte {
	body, _ := json.Marshal(map[string]string{"message": fmt.Sprintf(format, args...)})
	return body
}

// Dispatch validates the request body, routes it, calls the chosen
// processor and hands the record to the write queue. The enqueue happens
// before the Result is returned, so persistence is always at least staged
// by the time the client sees 201.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) Result {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return Result{Status: http.StatusBadRequest, Body: messageBody("Invalid request body")}
	}
	if req.CorrelationID == nil || *req.CorrelationID == "" {
		return Result{Status: http.StatusBadRequest, Body: messageBody("Invalid params. Missing 'correlationId'")}
	}
	if req.Amount == nil {
		return Result{Status: http.StatusBadRequest, Body: messageBody("Invalid params. Missing 'amount'")}
	}

	// Replay: a correlationId already dispatched returns its recorded
	// outcome without touching any upstream again.
	if rec, err := d.dedupe.Lookup(*req.CorrelationID); err != nil {
		d.log.Warn().Err(err).Msg("falha ao consultar dedupe, seguindo sem replay")
	} else if rec != nil {
		return Result{Status: rec.Status, Body: rec.Body}
	}

	payment := store.Payment{
		CorrelationID: clock.NewCorrelationID(),
		Amount:        *req.Amount,
		RequestedAt:   clock.Format(clock.NowUTC()),
	}

	snap := d.registry.Snapshot()
	decision := routing.Choose(snap)

	var baseURL string
	switch decision {
	case routing.Default:
		baseURL = d.defaultURL
		payment.DefaultService = true
	case routing.Fallback:
		baseURL = d.fallbackURL
	default:
		d.log.Error().Msg("nenhum processador disponível")
		return Result{Status: http.StatusInternalServerError, Body: messageBody("Erro interno do servidor")}
	}

	res, err := d.client.SubmitPayment(ctx, baseURL, upstream.PaymentRequest{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		RequestedAt:   payment.RequestedAt,
	})
	if err != nil {
		// Transport failure: no status was ever received, nothing is
		// recorded locally and the same correlationId may retry.
		d.log.Warn().Err(err).Str("upstream", decision.String()).Msg("falha de transporte no processador")
		return Result{Status: http.StatusBadRequest, Body: messageBody("Payment processor unreachable")}
	}

	payment.Processed = res.Processed()
	d.queue.Enqueue(payment)

	result := d.buildResult(payment, res)
	if err := d.dedupe.Remember(*req.CorrelationID, dedupe.Record{Status: result.Status, Body: result.Body}); err != nil {
		d.log.Warn().Err(err).Msg("falha ao gravar dedupe")
	}
	return result
}

func (d *Dispatcher) buildResult(payment store.Payment, res upstream.SubmitResult) Result {
	if payment.Processed {
		body, _ := json.Marshal(map[string]any{
			"message": res.Message,
			"payment": payment,
		})
		return Result{Status: http.StatusCreated, Body: body}
	}

	// Rejection: echo the processor's payload for debugging when it is
	// valid JSON, otherwise wrap it.
	if json.Valid(res.Body) && len(res.Body) > 0 {
		return Result{Status: http.StatusBadRequest, Body: res.Body}
	}
	return Result{Status: http.StatusBadRequest, Body: messageBody("Payment processor rejected the request")}
}
