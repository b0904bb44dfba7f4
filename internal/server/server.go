// Package server is the inbound HTTP surface of the broker.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/dedupe"
	"github.com/julianomacielferreira/garnize-on-juice/internal/dispatch"
	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/summary"
)

// maxBodySize bounds POST /payments bodies; the legitimate payload is tiny.
const maxBodySize = 64 * 1024

// Server routes inbound requests to the dispatcher, the aggregator and the
// purge path.
type Server struct {
	router     *mux.Router
	dispatcher *dispatch.Dispatcher
	aggregator *summary.Aggregator
	pool       *store.Pool
	dedupe     *dedupe.Store
	log        zerolog.Logger
}

// New builds the router. All unknown paths fall through to a JSON 404.
func New(dispatcher *dispatch.Dispatcher, aggregator *summary.Aggregator, pool *store.Pool, dedupeStore *dedupe.Store, log zerolog.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		aggregator: aggregator,
		pool:       pool,
		dedupe:     dedupeStore,
		log:        log.With().Str("component", "server").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/payments", s.handlePayments).Methods("POST")
	router.HandleFunc("/payments-summary", s.handlePaymentsSummary).Methods("GET")
	router.HandleFunc("/purge-payments", s.handlePurgePayments).Methods("POST")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)
	s.router = router
	return s
}

// Handler returns the http.Handler to mount.
func (s *Server) Handler() http.Handler {
	return s.router
}

// writeJSON emits body with explicit Content-Length and closes the
// connection afterwards, mirroring the one-shot connections of the
// original server.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"message": message})
	s.writeJSON(w, status, body)
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res := s.dispatcher.Dispatch(r.Context(), body)
	s.writeJSON(w, res.Status, res.Body)
}

func (s *Server) handlePaymentsSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from := query.Get("from")
	to := query.Get("to")
	if from == "" {
		s.writeMessage(w, http.StatusBadRequest, "Invalid params. Missing 'from'")
		return
	}
	if to == "" {
		s.writeMessage(w, http.StatusBadRequest, "Invalid params. Missing 'to'")
		return
	}

	report := s.aggregator.Summarize(r.Context(), from, to)
	body, err := json.Marshal(report)
	if err != nil {
		s.writeMessage(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePurgePayments(w http.ResponseWriter, r *http.Request) {
	success := true

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if h, err := s.pool.Acquire(ctx); err != nil {
		s.log.Error().Err(err).Msg("sem handle para o purge")
		success = false
	} else {
		if err := h.PurgeAll(); err != nil {
			s.log.Error().Err(err).Msg("falha ao limpar pagamentos")
			success = false
		}
		s.pool.Release(h)
	}

	if err := s.dedupe.PurgeAll(); err != nil {
		s.log.Error().Err(err).Msg("falha ao limpar dedupe")
		success = false
	}

	msg := "All payments purged"
	if !success {
		msg = "Failed to purge payments"
	}
	body, _ := json.Marshal(map[string]any{"message": msg, "success": success})
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, []byte(`{"status":"healthy"}`))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeMessage(w, http.StatusNotFound, "Not found")
}
