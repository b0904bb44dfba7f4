// Package upstream is the HTTP client for the two external payment
// processors: payment submission, service-health probes and the
// token-protected admin summary.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to one or more processor base URLs over a shared,
// connection-pooled transport.
type Client struct {
	http  *http.Client
	token string
	log   zerolog.Logger
}

// NewClient builds a Client with the given outbound timeout and the token
// sent on admin calls.
func NewClient(timeout time.Duration, adminToken string, log zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
			},
		},
		token: adminToken,
		log:   log.With().Str("component", "upstream").Logger(),
	}
}

// PaymentRequest is the body POSTed to {upstream}/payments.
type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// SubmitResult carries the processor's verdict on one payment.
type SubmitResult struct {
	StatusCode int
	Message    string
	Body       []byte
}

// Processed reports whether the processor accepted the payment.
func (r SubmitResult) Processed() bool {
	return r.StatusCode == http.StatusOK
}

// SubmitPayment POSTs one payment to baseURL. A non-nil error means the
// transport failed before any status was received.
func (c *Client) SubmitPayment(ctx context.Context, baseURL string, p PaymentRequest) (SubmitResult, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("erro ao serializar pagamento: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("erro ao montar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("processador indisponível: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	result := SubmitResult{StatusCode: resp.StatusCode, Body: body}

	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil {
		result.Message = msg.Message
	}
	c.log.Debug().Str("correlationId", p.CorrelationID).Int("status", resp.StatusCode).Msg("pagamento enviado ao processador")
	return result, nil
}

// looseBool accepts JSON true/false as well as 0/1, which the processors
// use interchangeably on the health endpoint.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1", `"true"`, `"1"`:
		*b = true
	case "false", "0", `"false"`, `"0"`, "null":
		*b = false
	default:
		return fmt.Errorf("valor booleano inválido: %s", data)
	}
	return nil
}

// HealthStatus is the body of GET {upstream}/payments/service-health.
type HealthStatus struct {
	Failing         looseBool `json:"failing"`
	MinResponseTime int       `json:"minResponseTime"`
}

// ServiceHealth probes baseURL. Any transport error or non-200 status is
// returned as an error so the caller can keep its previous snapshot.
func (c *Client) ServiceHealth(ctx context.Context, baseURL string) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/payments/service-health", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("erro ao montar requisição: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("health check falhou: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthStatus{}, fmt.Errorf("health check retornou status %d", resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("health check com corpo inválido: %w", err)
	}
	if status.MinResponseTime < 0 {
		status.MinResponseTime = 0
	}
	return status, nil
}

// AdminSummary is the body of GET {upstream}/admin/payments-summary.
type AdminSummary struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// FetchAdminSummary queries the processor's own ledger for [from, to]. The
// range strings are forwarded verbatim.
func (c *Client) FetchAdminSummary(ctx context.Context, baseURL, from, to string) (AdminSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/admin/payments-summary", nil)
	if err != nil {
		return AdminSummary{}, fmt.Errorf("erro ao montar requisição: %w", err)
	}
	q := req.URL.Query()
	q.Set("from", from)
	q.Set("to", to)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rinha-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return AdminSummary{}, fmt.Errorf("admin summary falhou: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AdminSummary{}, fmt.Errorf("admin summary retornou status %d", resp.StatusCode)
	}

	var summary AdminSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return AdminSummary{}, fmt.Errorf("admin summary com corpo inválido: %w", err)
	}
	return summary, nil
}
