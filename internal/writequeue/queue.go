// Package writequeue persists dispatched payments off the request path.
// Producers hand records to an unbounded in-memory queue and never block;
// a single consumer drains it through pooled store handles.
package writequeue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
)

// Queue is the single-consumer durable writer.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []store.Payment
	stopped bool

	pool *store.Pool
	log  zerolog.Logger
	done chan struct{}
}

// New starts the consumer goroutine immediately.
func New(pool *store.Pool, log zerolog.Logger) *Queue {
	q := &Queue{
		pool: pool,
		log:  log.With().Str("component", "writequeue").Logger(),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.consume()
	return q
}

// Enqueue appends one payment record. Records from the same producer are
// persisted in enqueue order. After Stop the record is dropped with a log.
func (q *Queue) Enqueue(p store.Payment) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.log.Warn().Str("correlationId", p.CorrelationID).Msg("fila parada, pagamento descartado")
		return
	}
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// Len reports the number of records still waiting to be persisted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop blocks new producers, lets the consumer drain what is queued and
// waits for it to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.done
}

func (q *Queue) consume() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		p := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.persist(p)
	}
}

// persist writes one record at most once. A failure is logged and the
// record is not re-enqueued; the client already received its response.
func (q *Queue) persist(p store.Payment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h, err := q.pool.Acquire(ctx)
	if err != nil {
		q.log.Error().Err(err).Str("correlationId", p.CorrelationID).Msg("sem handle, pagamento não persistido")
		return
	}
	defer q.pool.Release(h)

	if err := h.InsertPayment(p); err != nil {
		q.log.Error().Err(err).Str("correlationId", p.CorrelationID).Msg("falha ao persistir pagamento")
	}
}
