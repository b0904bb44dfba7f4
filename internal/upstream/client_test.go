package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(2*time.Second, "123", zerolog.Nop())
}

func TestSubmitPaymentSuccess(t *testing.T) {
	var got PaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"payment processed"}`))
	}))
	defer srv.Close()

	res, err := testClient().SubmitPayment(context.Background(), srv.URL, PaymentRequest{
		CorrelationID: "abc", Amount: 19.90, RequestedAt: "2025-07-30T12:00:00.000Z",
	})
	require.NoError(t, err)
	assert.True(t, res.Processed())
	assert.Equal(t, "payment processed", res.Message)
	assert.Equal(t, "abc", got.CorrelationID)
	assert.InDelta(t, 19.90, got.Amount, 1e-9)
}

func TestSubmitPaymentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid amount"}`))
	}))
	defer srv.Close()

	res, err := testClient().SubmitPayment(context.Background(), srv.URL, PaymentRequest{CorrelationID: "x"})
	require.NoError(t, err)
	assert.False(t, res.Processed())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.JSONEq(t, `{"message":"invalid amount"}`, string(res.Body))
}

func TestSubmitPaymentTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient().SubmitPayment(context.Background(), srv.URL, PaymentRequest{CorrelationID: "x"})
	assert.Error(t, err)
}

func TestServiceHealthParsesBooleans(t *testing.T) {
	cases := []struct {
		body    string
		failing bool
		minRT   int
	}{
		{`{"failing":false,"minResponseTime":50}`, false, 50},
		{`{"failing":true,"minResponseTime":80}`, true, 80},
		{`{"failing":1,"minResponseTime":10}`, true, 10},
		{`{"failing":0,"minResponseTime":0}`, false, 0},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/payments/service-health", r.URL.Path)
			w.Write([]byte(tc.body))
		}))
		status, err := testClient().ServiceHealth(context.Background(), srv.URL)
		srv.Close()
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.failing, bool(status.Failing), tc.body)
		assert.Equal(t, tc.minRT, status.MinResponseTime, tc.body)
	}
}

func TestServiceHealthNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient().ServiceHealth(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchAdminSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/payments-summary", r.URL.Path)
		require.Equal(t, "123", r.Header.Get("X-Rinha-Token"))
		require.Equal(t, "2025-07-01T00:00:00.000Z", r.URL.Query().Get("from"))
		require.Equal(t, "2025-08-01T00:00:00.000Z", r.URL.Query().Get("to"))
		w.Write([]byte(`{"totalRequests":2,"totalAmount":10.00}`))
	}))
	defer srv.Close()

	sum, err := testClient().FetchAdminSummary(context.Background(), srv.URL,
		"2025-07-01T00:00:00.000Z", "2025-08-01T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalRequests)
	assert.InDelta(t, 10.00, sum.TotalAmount, 1e-9)
}

func TestFetchAdminSummaryNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient().FetchAdminSummary(context.Background(), srv.URL, "a", "b")
	assert.Error(t, err)
}
