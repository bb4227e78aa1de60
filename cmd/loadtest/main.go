package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Drives the sync endpoint the way the result page does: each
// simulated client polls its order reference on a fixed backoff until
// a terminal answer or the attempt budget runs out.
const (
	BaseURL      = "http://localhost:8080"
	TotalClients = 500
	MaxAttempts  = 8
	PollInterval = 1200 * time.Millisecond
)

var httpClient *http.Client

func init() {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type syncResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

func main() {
	fmt.Printf("Polling %s with %d concurrent clients, %d attempts each...\n",
		BaseURL, TotalClients, MaxAttempts)

	var wg sync.WaitGroup
	var mu sync.Mutex
	statusCounts := make(map[string]int)
	errorCount := 0

	start := time.Now()

	for i := 0; i < TotalClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()

			orderReference := fmt.Sprintf("mc_monthly_%d_%08d", start.Unix(), clientID)

			for attempt := 0; attempt < MaxAttempts; attempt++ {
				status, err := pollSync(orderReference)
				if err != nil {
					mu.Lock()
					errorCount++
					mu.Unlock()
					return
				}
				if status == "paid" || status == "declined" {
					break
				}
				time.Sleep(PollInterval)
			}

			status, err := pollSync(orderReference)
			mu.Lock()
			if err != nil {
				errorCount++
			} else {
				statusCounts[status]++
			}
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("\nDone in %s\n", elapsed)
	for status, count := range statusCounts {
		fmt.Printf("  %-28s %d\n", status, count)
	}
	fmt.Printf("  %-28s %d\n", "errors", errorCount)
}

func pollSync(orderReference string) (string, error) {
	resp, err := httpClient.Get(BaseURL + "/billing/sync?orderReference=" + orderReference)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var sr syncResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", err
	}
	if !sr.OK {
		return "", fmt.Errorf("sync returned ok=false")
	}
	return sr.Status, nil
}
