package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samijaber1/aegis-compliance/internal/storage"
	"golang.org/x/sync/semaphore"
)

// Config holds inference client configuration
type Config struct {
	URL            string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(serviceURL string) Config {
	return Config{
		URL:            serviceURL,
		Timeout:        5 * time.Second,
		MaxConcurrency: 4,
		RetryCount:     1,
		RetryDelay:     200 * time.Millisecond,
	}
}

// ClassifyRequest is the body posted to the inference service
type ClassifyRequest struct {
	SignalRef string `json:"signalRef"`
}

// ClassifyResponse is the inference service reply
type ClassifyResponse struct {
	Label      string            `json:"label"`
	Detected   bool              `json:"detected"`
	Confidence float64           `json:"confidence"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Client classifies raw signals through a remote inference service
type Client struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewClient creates a new inference client
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// Classify posts signalRef to the inference service. Transport failures and
// 5xx replies are retried; a 4xx reply is returned as a result carrying an
// error kind so the record is not retried forever.
func (c *Client) Classify(ctx context.Context, signalRef string) (storage.ProcessingResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return storage.ProcessingResult{}, fmt.Errorf("semaphore acquire: %w", err)
	}
	defer c.sem.Release(1)

	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return storage.ProcessingResult{}, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, status, err := c.post(ctx, signalRef)
		if err == nil {
			return storage.ProcessingResult{
				Label:          resp.Label,
				Detected:       resp.Detected,
				Confidence:     resp.Confidence,
				ErrorKind:      resp.ErrorKind,
				ProcessingTime: time.Since(start),
				ProcessedAt:    time.Now(),
				Details:        resp.Details,
			}, nil
		}

		if status >= 400 && status < 500 {
			return storage.ProcessingResult{
				ErrorKind:      fmt.Sprintf("rejected_%d", status),
				ProcessingTime: time.Since(start),
				ProcessedAt:    time.Now(),
				Details:        map[string]string{"error": err.Error()},
			}, nil
		}

		lastErr = err
	}

	return storage.ProcessingResult{}, fmt.Errorf("classify failed after %d attempts: %w", c.config.RetryCount+1, lastErr)
}

// post performs a single classification request
func (c *Client) post(ctx context.Context, signalRef string) (*ClassifyResponse, int, error) {
	body, err := json.Marshal(ClassifyRequest{SignalRef: signalRef})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(c.config.URL, "/") + "/v1/classify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("http status %d: %s", resp.StatusCode, string(data))
	}

	var result ClassifyResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}

	return &result, resp.StatusCode, nil
}
