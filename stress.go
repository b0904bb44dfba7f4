package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

func main() {
	const (
		totalRequests = 500
		concurrency   = 20
		baseURL       = "http://localhost:9999"
	)

	var (
		mu         sync.Mutex
		success    int
		timeout    int
		errorCount int
	)

	sem := make(chan struct{}, concurrency)
	wg := sync.WaitGroup{}

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			payload := PaymentRequest{
				CorrelationID: fmt.Sprintf("stress-%d-%d", time.Now().UnixNano(), i),
				Amount:        19.90,
			}
			b, _ := json.Marshal(payload)
			req, _ := http.NewRequest("POST", baseURL+"/payments", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				mu.Lock()
				if err, ok := err.(net.Error); ok && err.Timeout() {
					timeout++
				} else {
					errorCount++
				}
				mu.Unlock()
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			mu.Lock()
			if resp.StatusCode == 201 {
				success++
			} else {
				fmt.Printf("Erro HTTP %d: %s\n", resp.StatusCode, string(body))
				errorCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("Sucesso: %d\nTimeout: %d\nErro: %d\nTempo total: %s\n", success, timeout, errorCount, elapsed)

	from := start.Add(-time.Minute).UTC().Format("2006-01-02T15:04:05.000Z")
	to := time.Now().Add(time.Minute).UTC().Format("2006-01-02T15:04:05.000Z")
	resp, err := client.Get(fmt.Sprintf("%s/payments-summary?from=%s&to=%s", baseURL, from, to))
	if err != nil {
		fmt.Printf("Erro ao buscar resumo: %v\n", err)
		return
	}
	defer resp.Body.Close()
	summary, _ := io.ReadAll(resp.Body)
	fmt.Printf("Resumo: %s\n", summary)
}
