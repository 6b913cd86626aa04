package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samijaber1/aegis-compliance/internal/metrics"
	"github.com/samijaber1/aegis-compliance/internal/storage"
)

var (
	// ErrAlreadyRunning is returned by Start on a running scheduler
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNotRunning is returned by Stop on a stopped scheduler
	ErrNotRunning = errors.New("scheduler not running")
	// ErrStopTimeout is returned when the in-flight tick outlives the stop timeout
	ErrStopTimeout = errors.New("scheduler did not stop within timeout")
	// ErrCollaboratorTimeout wraps a store or classifier call that exceeded its deadline
	ErrCollaboratorTimeout = errors.New("collaborator timeout")
	// ErrCollaborator wraps any other store or classifier failure
	ErrCollaborator = errors.New("collaborator error")
)

// Store is the subset of the record store the reconciliation passes use
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]storage.WorkItem, error)
	MarkProcessed(ctx context.Context, id string, result storage.ProcessingResult) error
	FindStale(ctx context.Context, cutoff time.Time) ([]storage.Device, error)
	SetDeviceStatus(ctx context.Context, deviceID string, status storage.DeviceStatus) error
	PurgeOlderThan(ctx context.Context, kind storage.RecordKind, cutoff time.Time) (int64, error)
	SaveAlert(ctx context.Context, a storage.StoredAlert) error
}

// Classifier turns a raw signal reference into a classification
type Classifier interface {
	Classify(ctx context.Context, signalRef string) (storage.ProcessingResult, error)
}

// MetricSource evaluates a scrape query into a single value
type MetricSource interface {
	Query(ctx context.Context, query string) (float64, error)
}

// MetricRecorder accepts samples for compliance evaluation
type MetricRecorder interface {
	RecordMetric(domainID, metricName string, value float64, unit string) error
}

// call runs fn under the per-call timeout. The deadline is enforced even if
// fn ignores its context; the abandoned call finishes in the background.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	return callWithLate(ctx, timeout, op, fn, nil)
}

// callWithLate is call with a hook for abandoned calls: if fn succeeds after
// the deadline has been reported, late runs with its result.
func callWithLate[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error), late func(T)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.PanicsRecovered.WithLabelValues("collaborator").Inc()
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(cctx)
		ch <- outcome{val: v, err: err}
	}()

	var zero T
	select {
	case out := <-ch:
		if out.err == nil {
			return out.val, nil
		}
		if errors.Is(out.err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrCollaboratorTimeout, out.err)
		}
		return zero, fmt.Errorf("%s: %w: %w", op, ErrCollaborator, out.err)
	case <-cctx.Done():
		if late != nil {
			go func() {
				if out := <-ch; out.err == nil {
					late(out.val)
				}
			}()
		}
		return zero, fmt.Errorf("%s: %w: %w", op, ErrCollaboratorTimeout, cctx.Err())
	}
}

// callErr is call for operations without a result
func callErr(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
