package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const maxResponseBytes = 4 << 20

// ErrNoData is returned when a query has no finite sample to report
var ErrNoData = errors.New("query returned no data")

// Config holds Prometheus source configuration
type Config struct {
	URL            string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
	// Window replaces {{window}} in catalog queries
	Window string
}

// DefaultConfig returns default configuration
func DefaultConfig(prometheusURL string) Config {
	return Config{
		URL:            prometheusURL,
		Timeout:        10 * time.Second,
		MaxConcurrency: 10,
		RetryCount:     1,
		RetryDelay:     100 * time.Millisecond,
		Window:         "5m",
	}
}

// Source turns catalog PromQL queries into single metric values using the
// Prometheus instant query API. Vector results are summed; NaN and Inf
// samples are dropped since the evaluator only accepts finite values.
type Source struct {
	cfg      Config
	endpoint string
	client   *http.Client
	sem      *semaphore.Weighted
}

// NewSource creates a Prometheus-backed metric source
func NewSource(cfg Config) *Source {
	return &Source{
		cfg:      cfg,
		endpoint: strings.TrimSuffix(cfg.URL, "/") + "/api/v1/query",
		client:   &http.Client{Timeout: cfg.Timeout},
		sem:      semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// retryableError marks failures worth another attempt: transport errors and 5xx
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Query evaluates one catalog query. Rejected queries fail immediately, server and
// network errors are retried RetryCount times.
func (s *Source) Query(ctx context.Context, query string) (float64, error) {
	promql := substituteWindow(query, s.cfg.Window)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("waiting for query slot: %w", err)
	}
	defer s.sem.Release(1)

	var err error
	for attempt := 0; attempt <= s.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(s.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, fmt.Errorf("query %q: %w", promql, ctx.Err())
			case <-t.C:
			}
		}

		var data *apiData
		data, err = s.fetch(ctx, promql)
		if err == nil {
			return sumResult(data)
		}

		var retry retryableError
		if !errors.As(err, &retry) {
			return 0, fmt.Errorf("query %q: %w", promql, err)
		}
	}

	return 0, fmt.Errorf("query %q failed after %d attempts: %w", promql, s.cfg.RetryCount+1, err)
}

func (s *Source) fetch(ctx context.Context, promql string) (*apiData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+url.Values{"query": {promql}}.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retryableError{err}
	}
	defer resp.Body.Close()

	var out apiResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out)

	switch {
	case resp.StatusCode >= 500:
		return nil, retryableError{fmt.Errorf("prometheus returned %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		// 400 and 422 carry the reason in the envelope
		if decodeErr == nil && out.Error != "" {
			return nil, fmt.Errorf("prometheus rejected query (%s): %s", out.ErrorType, out.Error)
		}
		return nil, fmt.Errorf("prometheus returned %s", resp.Status)
	case decodeErr != nil:
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	case out.Status != "success":
		return nil, fmt.Errorf("prometheus %s: %s", out.ErrorType, out.Error)
	}

	return &out.Data, nil
}

func substituteWindow(query string, window string) string {
	return strings.ReplaceAll(query, "{{window}}", window)
}

// sumResult reduces a vector or scalar result to one finite value
func sumResult(data *apiData) (float64, error) {
	var pairs []samplePair

	switch data.ResultType {
	case "vector":
		var vec []vectorSample
		if err := json.Unmarshal(data.Result, &vec); err != nil {
			return 0, fmt.Errorf("decoding vector: %w", err)
		}
		for _, v := range vec {
			pairs = append(pairs, v.Value)
		}
	case "scalar":
		var p samplePair
		if err := json.Unmarshal(data.Result, &p); err != nil {
			return 0, fmt.Errorf("decoding scalar: %w", err)
		}
		pairs = append(pairs, p)
	default:
		return 0, fmt.Errorf("unsupported result type %q", data.ResultType)
	}

	var sum float64
	var n int
	for _, p := range pairs {
		v, err := p.float()
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, ErrNoData
	}
	return sum, nil
}
