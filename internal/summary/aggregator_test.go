package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/upstream"
)

func testPool(t *testing.T, payments ...store.Payment) *store.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summary.db")

	h, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	for _, p := range payments {
		require.NoError(t, h.InsertPayment(p))
	}
	require.NoError(t, h.Close())

	pool := store.NewPool(func() (*store.Handle, error) { return store.Open(path) }, 2, 8)
	t.Cleanup(pool.Shutdown)
	return pool
}

func deadServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSummarizeAdminFirstLocalFallback(t *testing.T) {
	// Two stored default payments; default admin reports them, fallback
	// admin is down so its side comes from the (empty) local view.
	pool := testPool(t,
		store.Payment{CorrelationID: "a", Amount: 3.00, RequestedAt: "2025-07-30T12:00:00.000Z", DefaultService: true, Processed: true},
		store.Payment{CorrelationID: "b", Amount: 7.00, RequestedAt: "2025-07-30T13:00:00.000Z", DefaultService: true, Processed: true},
	)

	adminSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "123", r.Header.Get("X-Rinha-Token"))
		w.Write([]byte(`{"totalRequests":2,"totalAmount":10.00}`))
	}))
	defer adminSrv.Close()
	brokenSrv := deadServer(t)

	client := upstream.NewClient(2*time.Second, "123", zerolog.Nop())
	agg := New(client, pool, adminSrv.URL, brokenSrv.URL, zerolog.Nop())

	report := agg.Summarize(context.Background(), "2025-07-01T00:00:00.000Z", "2025-08-01T00:00:00.000Z")

	assert.Equal(t, 2, report.Default.TotalRequests)
	assert.InDelta(t, 10.00, float64(report.Default.TotalAmount), 1e-9)
	assert.Equal(t, 0, report.Fallback.TotalRequests)
	assert.InDelta(t, 0.00, float64(report.Fallback.TotalAmount), 1e-9)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"default":{"totalRequests":2,"totalAmount":10.00},"fallback":{"totalRequests":0,"totalAmount":0.00}}`,
		string(out))
}

func TestSummarizeLocalBranchCountsEachPaymentOnce(t *testing.T) {
	pool := testPool(t,
		store.Payment{CorrelationID: "a", Amount: 3.00, RequestedAt: "2025-07-30T12:00:00.000Z", DefaultService: true, Processed: true},
		store.Payment{CorrelationID: "b", Amount: 5.00, RequestedAt: "2025-07-30T12:30:00.000Z", DefaultService: false, Processed: true},
		// Unprocessed dispatches never count.
		store.Payment{CorrelationID: "c", Amount: 9.00, RequestedAt: "2025-07-30T12:40:00.000Z", DefaultService: true, Processed: false},
	)
	broken := deadServer(t)

	client := upstream.NewClient(2*time.Second, "123", zerolog.Nop())
	agg := New(client, pool, broken.URL, broken.URL, zerolog.Nop())

	report := agg.Summarize(context.Background(), "2025-07-30T00:00:00.000Z", "2025-07-31T00:00:00.000Z")

	assert.Equal(t, 1, report.Default.TotalRequests)
	assert.InDelta(t, 3.00, float64(report.Default.TotalAmount), 1e-9)
	assert.Equal(t, 1, report.Fallback.TotalRequests)
	assert.InDelta(t, 5.00, float64(report.Fallback.TotalAmount), 1e-9)
}

func TestSummarizeBoundaryTimestampsIncluded(t *testing.T) {
	pool := testPool(t,
		store.Payment{CorrelationID: "edge", Amount: 2.00, RequestedAt: "2025-07-30T12:00:00.000Z", DefaultService: true, Processed: true},
	)
	broken := deadServer(t)

	client := upstream.NewClient(2*time.Second, "123", zerolog.Nop())
	agg := New(client, pool, broken.URL, broken.URL, zerolog.Nop())

	report := agg.Summarize(context.Background(), "2025-07-30T12:00:00.000Z", "2025-07-30T12:00:00.000Z")
	assert.Equal(t, 1, report.Default.TotalRequests)
}

func TestAmountMarshalsTwoDecimals(t *testing.T) {
	out, err := json.Marshal(Totals{TotalRequests: 1, TotalAmount: Amount(19.9)})
	require.NoError(t, err)
	assert.Equal(t, `{"totalRequests":1,"totalAmount":19.90}`, string(out))

	out, err = json.Marshal(Totals{})
	require.NoError(t, err)
	assert.Equal(t, `{"totalRequests":0,"totalAmount":0.00}`, string(out))
}
