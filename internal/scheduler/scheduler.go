package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// Config holds reconciliation settings
type Config struct {
	Interval               time.Duration
	Backoff                time.Duration
	CallTimeout            time.Duration
	BatchSize              int
	Workers                int
	StaleAfter             time.Duration
	TelemetryRetention     time.Duration
	ResolvedAlertRetention time.Duration
	DetectionThreshold     float64
	HighConfidence         float64
	Now                    func() time.Time
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:               10 * time.Second,
		Backoff:                5 * time.Second,
		CallTimeout:            5 * time.Second,
		BatchSize:              5,
		Workers:                1,
		StaleAfter:             time.Hour,
		TelemetryRetention:     30 * 24 * time.Hour,
		ResolvedAlertRetention: 7 * 24 * time.Hour,
		DetectionThreshold:     0.7,
		HighConfidence:         0.9,
		Now:                    time.Now,
	}
}

// Deps are the collaborators a scheduler works with. Recorder, Source and
// Catalog are optional; without them derived metrics and scrapes are skipped.
type Deps struct {
	Store      Store
	Classifier Classifier
	Alerts     *alert.Log
	Recorder   MetricRecorder
	Source     MetricSource
	Catalog    *threshold.Catalog
}

// Scheduler runs the reconciliation passes on a fixed interval from a
// single background goroutine
type Scheduler struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// tickMu keeps ticks strictly sequential, including RunOnce from other callers
	tickMu   sync.Mutex
	statsMu  sync.RWMutex
	ticks    int64
	lastTick *TickReport
}

// NewScheduler creates a new scheduler. Zero config fields take their
// defaults, so a detection threshold of exactly 0 cannot be expressed.
func NewScheduler(cfg Config, deps Deps) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.TelemetryRetention <= 0 {
		cfg.TelemetryRetention = def.TelemetryRetention
	}
	if cfg.ResolvedAlertRetention <= 0 {
		cfg.ResolvedAlertRetention = def.ResolvedAlertRetention
	}
	if cfg.DetectionThreshold <= 0 {
		cfg.DetectionThreshold = def.DetectionThreshold
	}
	if cfg.HighConfidence <= 0 {
		cfg.HighConfidence = def.HighConfidence
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	return &Scheduler{
		cfg:  cfg,
		deps: deps,
		log:  logger.WithComponent("scheduler"),
	}
}

// Start launches the reconciliation loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("batch_size", s.cfg.BatchSize).
		Msg("scheduler started")
	return nil
}

// Stop signals the loop to exit and waits up to timeout for the in-flight tick
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}

	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	s.log.Info().Msg("stopping scheduler")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-timer.C:
		s.log.Error().Dur("timeout", timeout).Msg("scheduler did not stop in time")
		return ErrStopTimeout
	}
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot of scheduler activity
func (s *Scheduler) Stats() Stats {
	stats := Stats{Running: s.Running()}

	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	stats.Ticks = s.ticks
	if s.lastTick != nil {
		last := *s.lastTick
		stats.LastTick = &last
	}
	return stats
}

// loop runs ticks back to back, sleeping the interval after each one
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		report := s.RunOnce(ctx)

		wait := s.cfg.Interval
		if report.Failed() {
			wait = s.cfg.Backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type pass struct {
	name string
	run  func(context.Context, *TickReport) error
}

// RunOnce executes one tick synchronously. Cancelling ctx stops the tick
// between passes; calls already in flight run to their own timeout.
func (s *Scheduler) RunOnce(ctx context.Context) (report TickReport) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	report.StartedAt = s.cfg.Now()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
			s.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic in tick")
			report.Err = fmt.Sprintf("tick panic: %v", r)
		}

		report.Duration = time.Since(start)
		s.finishTick(report)
	}()

	if ctx.Err() != nil {
		report.Cancelled = true
		return report
	}

	work := context.WithoutCancel(ctx)

	passes := []pass{
		{"drain", s.drain},
		{"liveness", s.sweepLiveness},
		{"purge", s.purge},
		{"scrape", s.scrape},
	}

	for _, p := range passes {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		s.runPass(work, p, &report)
	}

	if !report.Cancelled {
		report.Duration = time.Since(start)
		s.recordDerived(report)
	}

	return report
}

// runPass runs one pass, containing its errors and panics
func (s *Scheduler) runPass(ctx context.Context, p pass, report *TickReport) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				metrics.PanicsRecovered.WithLabelValues("scheduler_" + p.name).Inc()
				s.log.Error().
					Str("pass", p.name).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in pass")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return p.run(ctx, report)
	}()

	metrics.SchedulerPassDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SchedulerPassFailures.WithLabelValues(p.name).Inc()
		report.PassErrors = append(report.PassErrors, PassError{Pass: p.name, Error: err.Error()})
		s.log.Error().Err(err).Str("pass", p.name).Msg("reconciliation pass failed")
	}
}

func (s *Scheduler) finishTick(report TickReport) {
	result := "ok"
	switch {
	case report.Failed():
		result = "failed"
	case len(report.PassErrors) > 0:
		result = "degraded"
	case report.Cancelled:
		result = "cancelled"
	}
	metrics.SchedulerTicksTotal.WithLabelValues(result).Inc()

	s.statsMu.Lock()
	s.ticks++
	s.lastTick = &report
	s.statsMu.Unlock()

	s.log.Debug().
		Str("result", result).
		Dur("duration", report.Duration).
		Int("processed", report.Drain.Processed).
		Int("marked_offline", report.Liveness.MarkedOffline).
		Msg("tick complete")
}
