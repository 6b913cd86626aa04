package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samijaber1/aegis-compliance/internal/adapter/prometheus"
	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
	"github.com/samijaber1/aegis-compliance/internal/storage"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// drain classifies one batch of pending telemetry
func (s *Scheduler) drain(ctx context.Context, report *TickReport) error {
	if s.deps.Store == nil || s.deps.Classifier == nil {
		return nil
	}

	items, err := call(ctx, s.cfg.CallTimeout, "fetch pending", func(ctx context.Context) ([]storage.WorkItem, error) {
		return s.deps.Store.FetchPending(ctx, s.cfg.BatchSize)
	})
	if err != nil {
		return err
	}
	report.Drain.Fetched = len(items)
	if len(items) == 0 {
		return nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)

	for _, item := range items {
		g.Go(func() error {
			outcome, alerts := s.processItem(ctx, item)

			mu.Lock()
			switch outcome {
			case "processed":
				report.Drain.Processed++
			case "skipped":
				report.Drain.Skipped++
			default:
				report.Drain.Failed++
			}
			report.Drain.Alerts += alerts
			mu.Unlock()

			metrics.DrainItemsTotal.WithLabelValues(outcome).Inc()
			return nil
		})
	}
	_ = g.Wait()

	if report.Drain.Processed > 0 || report.Drain.Failed > 0 {
		s.log.Info().
			Int("processed", report.Drain.Processed).
			Int("failed", report.Drain.Failed).
			Int("skipped", report.Drain.Skipped).
			Msg("drained pending telemetry")
	}
	return nil
}

// processItem handles a single work item and returns its outcome and the
// number of alerts raised. A failure leaves the item pending for a later tick.
func (s *Scheduler) processItem(ctx context.Context, item storage.WorkItem) (outcome string, alerts int) {
	log := s.log.With().Str("item_id", item.ID).Str("device_id", item.DeviceID).Logger()

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("scheduler_item").Inc()
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic processing item")
			outcome = "failed"
		}
	}()

	if item.SignalRef == "" {
		log.Warn().Msg("skipping telemetry without signal reference")
		return "skipped", 0
	}

	result, err := call(ctx, s.cfg.CallTimeout, "classify", func(ctx context.Context) (storage.ProcessingResult, error) {
		return s.deps.Classifier.Classify(ctx, item.SignalRef)
	})
	if err != nil {
		log.Warn().Err(err).Msg("classification failed, item left pending")
		return "failed", 0
	}
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = s.cfg.Now()
	}

	// A write that lands after its deadline no longer shows up as pending,
	// so its alert is raised from the late hook instead of a later tick.
	_, err = callWithLate(ctx, s.cfg.CallTimeout, "mark processed", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Store.MarkProcessed(ctx, item.ID, result)
	}, func(struct{}) {
		metrics.DrainItemsTotal.WithLabelValues("processed_late").Inc()
		log.Warn().Msg("item marked processed after timeout")
		if e, ok := s.resultAlert(item, result); ok {
			s.raise(ctx, e)
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to mark item processed, item left pending")
		return "failed", 0
	}

	if e, ok := s.resultAlert(item, result); ok {
		if s.raise(ctx, e) {
			alerts++
		}
	}
	return "processed", alerts
}

// resultAlert builds the alert a classification result warrants, if any
func (s *Scheduler) resultAlert(item storage.WorkItem, result storage.ProcessingResult) (alert.Event, bool) {
	meta := map[string]string{
		"telemetry_id": item.ID,
		"signal_ref":   item.SignalRef,
	}

	if result.Failed() {
		meta["error_kind"] = result.ErrorKind
		return alert.Event{
			Kind:     alert.KindProcessingFailure,
			DeviceID: item.DeviceID,
			Status:   threshold.Warning,
			Message:  fmt.Sprintf("Processing failed for telemetry %s from device %s: %s", item.ID, item.DeviceID, result.ErrorKind),
			Metadata: meta,
		}, true
	}

	if !result.Detected || result.Confidence <= s.cfg.DetectionThreshold {
		return alert.Event{}, false
	}

	status := threshold.Violation
	if result.Confidence > s.cfg.HighConfidence {
		status = threshold.Critical
	}
	meta["label"] = result.Label

	return alert.Event{
		Kind:       alert.KindDetection,
		DeviceID:   item.DeviceID,
		Status:     status,
		Confidence: result.Confidence,
		Message:    fmt.Sprintf("Detected %s on device %s (confidence: %.2f)", result.Label, item.DeviceID, result.Confidence),
		Metadata:   meta,
	}, true
}

// sweepLiveness marks devices silent for longer than StaleAfter offline
func (s *Scheduler) sweepLiveness(ctx context.Context, report *TickReport) error {
	if s.deps.Store == nil {
		return nil
	}

	now := s.cfg.Now()
	cutoff := now.Add(-s.cfg.StaleAfter)

	stale, err := call(ctx, s.cfg.CallTimeout, "find stale", func(ctx context.Context) ([]storage.Device, error) {
		return s.deps.Store.FindStale(ctx, cutoff)
	})
	if err != nil {
		return err
	}
	report.Liveness.Stale = len(stale)

	for _, d := range stale {
		err := callErr(ctx, s.cfg.CallTimeout, "set device status", func(ctx context.Context) error {
			return s.deps.Store.SetDeviceStatus(ctx, d.ID, storage.DeviceOffline)
		})
		if err != nil {
			report.Liveness.Failed++
			s.log.Warn().Err(err).Str("device_id", d.ID).Msg("failed to mark device offline")
			continue
		}

		report.Liveness.MarkedOffline++
		metrics.DevicesMarkedOffline.Inc()

		meta := map[string]string{"device_type": d.Type}
		if d.LastSeenAt != nil {
			meta["last_seen"] = d.LastSeenAt.UTC().Format(time.RFC3339)
		}

		s.raise(ctx, alert.Event{
			Kind:     alert.KindDeviceOffline,
			DeviceID: d.ID,
			Status:   threshold.Warning,
			Message:  fmt.Sprintf("Device %s has been offline for more than %s", deviceName(d), formatWindow(s.cfg.StaleAfter)),
			Metadata: meta,
		})
	}

	if report.Liveness.MarkedOffline > 0 {
		s.log.Info().Int("count", report.Liveness.MarkedOffline).Msg("marked devices offline")
	}
	return nil
}

// purge applies the retention windows. Both purges are attempted even if one fails.
func (s *Scheduler) purge(ctx context.Context, report *TickReport) error {
	if s.deps.Store == nil {
		return nil
	}

	now := s.cfg.Now()

	telemetry, errT := call(ctx, s.cfg.CallTimeout, "purge telemetry", func(ctx context.Context) (int64, error) {
		return s.deps.Store.PurgeOlderThan(ctx, storage.KindTelemetry, now.Add(-s.cfg.TelemetryRetention))
	})
	resolved, errA := call(ctx, s.cfg.CallTimeout, "purge resolved alerts", func(ctx context.Context) (int64, error) {
		return s.deps.Store.PurgeOlderThan(ctx, storage.KindResolvedAlerts, now.Add(-s.cfg.ResolvedAlertRetention))
	})

	report.Purge.Telemetry = telemetry
	report.Purge.ResolvedAlerts = resolved
	metrics.PurgedRecordsTotal.WithLabelValues(string(storage.KindTelemetry)).Add(float64(telemetry))
	metrics.PurgedRecordsTotal.WithLabelValues(string(storage.KindResolvedAlerts)).Add(float64(resolved))

	if telemetry > 0 || resolved > 0 {
		s.log.Info().
			Int64("telemetry", telemetry).
			Int64("resolved_alerts", resolved).
			Msg("purged expired records")
	}

	return errors.Join(errT, errA)
}

// scrape evaluates every catalog entry that carries a query and records the result
func (s *Scheduler) scrape(ctx context.Context, report *TickReport) error {
	if s.deps.Source == nil || s.deps.Recorder == nil || s.deps.Catalog == nil {
		return nil
	}

	var errs []error
	for _, spec := range s.deps.Catalog.Specs() {
		if spec.Query == "" {
			continue
		}
		report.Scrape.Queried++

		value, err := call(ctx, s.cfg.CallTimeout, "scrape "+spec.Key().String(), func(ctx context.Context) (float64, error) {
			return s.deps.Source.Query(ctx, spec.Query)
		})
		if errors.Is(err, prometheus.ErrNoData) {
			continue
		}
		if err != nil {
			report.Scrape.Failed++
			errs = append(errs, err)
			continue
		}

		if err := s.deps.Recorder.RecordMetric(spec.DomainID, spec.MetricName, value, spec.Unit); err != nil {
			report.Scrape.Failed++
			errs = append(errs, fmt.Errorf("record %s: %w", spec.Key(), err))
			continue
		}
		report.Scrape.Recorded++
	}

	return errors.Join(errs...)
}

// recordDerived feeds the scheduler's own health into the RECON domain
func (s *Scheduler) recordDerived(report TickReport) {
	if s.deps.Recorder == nil {
		return
	}

	record := func(metric string, value float64, unit string) {
		if err := s.deps.Recorder.RecordMetric(threshold.ReconDomain, metric, value, unit); err != nil {
			s.log.Warn().Err(err).Str("metric", metric).Msg("failed to record derived metric")
		}
	}

	record("tick_duration_ms", float64(report.Duration.Microseconds())/1000, "ms")
	record("offline_devices", float64(report.Liveness.MarkedOffline), "devices")

	if attempted := report.Drain.Attempted(); attempted > 0 {
		record("drain_failure_rate", float64(report.Drain.Failed)/float64(attempted), "ratio")
	}
}

// raise appends an event to the alert log and persists it. It reports
// whether the alert was persisted.
func (s *Scheduler) raise(ctx context.Context, e alert.Event) bool {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.cfg.Now()
	}
	if s.deps.Alerts != nil {
		e = s.deps.Alerts.Append(e)
	} else if e.ID == "" {
		e.ID = alert.NewID()
	}

	if s.deps.Store == nil {
		return false
	}

	stored := toStoredAlert(e)
	err := callErr(ctx, s.cfg.CallTimeout, "save alert", func(ctx context.Context) error {
		return s.deps.Store.SaveAlert(ctx, stored)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("alert_id", e.ID).Str("kind", string(e.Kind)).Msg("failed to persist alert")
		return false
	}
	return true
}

func toStoredAlert(e alert.Event) storage.StoredAlert {
	a := storage.StoredAlert{
		ID:        e.ID,
		DeviceID:  e.DeviceID,
		Kind:      string(e.Kind),
		Severity:  string(e.Status),
		Message:   e.Message,
		State:     storage.AlertActive,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
	if e.Kind == alert.KindDetection {
		c := e.Confidence
		a.Confidence = &c
	}
	return a
}

func deviceName(d storage.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// formatWindow renders a duration the way operators write it: 1 hour, 30 minutes, 2 days
func formatWindow(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return unit(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
