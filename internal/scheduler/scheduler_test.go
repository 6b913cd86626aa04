package scheduler

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/samijaber1/aegis-compliance/internal/adapter/prometheus"
	"github.com/samijaber1/aegis-compliance/internal/adapter/synthetic"
	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/storage"
	"github.com/samijaber1/aegis-compliance/internal/storage/sqlstore"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store
type memStore struct {
	mu      sync.Mutex
	devices map[string]storage.Device
	items   []storage.WorkItem
	alerts  []storage.StoredAlert

	fetchErr   error
	markErr    error
	markDelay  time.Duration
	purgeErr   map[storage.RecordKind]error
	purgeCount map[storage.RecordKind]int64
	purgeCalls map[storage.RecordKind]time.Time
	statusErr  map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		devices:    make(map[string]storage.Device),
		purgeErr:   make(map[storage.RecordKind]error),
		purgeCount: make(map[storage.RecordKind]int64),
		purgeCalls: make(map[storage.RecordKind]time.Time),
		statusErr:  make(map[string]error),
	}
}

func (m *memStore) FetchPending(ctx context.Context, limit int) ([]storage.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []storage.WorkItem
	for _, it := range m.items {
		if !it.Processed && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) MarkProcessed(ctx context.Context, id string, result storage.ProcessingResult) error {
	// markDelay ignores ctx, like a commit already sent to the database
	time.Sleep(m.markDelay)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Processed = true
			r := result
			m.items[i].Result = &r
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memStore) FindStale(ctx context.Context, cutoff time.Time) ([]storage.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Device
	for _, d := range m.devices {
		if d.Status != storage.DeviceOffline && d.LastSeenAt != nil && d.LastSeenAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SetDeviceStatus(ctx context.Context, deviceID string, status storage.DeviceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErr[deviceID]; err != nil {
		return err
	}
	d := m.devices[deviceID]
	d.Status = status
	m.devices[deviceID] = d
	return nil
}

func (m *memStore) PurgeOlderThan(ctx context.Context, kind storage.RecordKind, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCalls[kind] = cutoff
	if err := m.purgeErr[kind]; err != nil {
		return 0, err
	}
	return m.purgeCount[kind], nil
}

func (m *memStore) SaveAlert(ctx context.Context, a storage.StoredAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) item(id string) storage.WorkItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			return it
		}
	}
	return storage.WorkItem{}
}

func (m *memStore) savedAlerts() []storage.StoredAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.StoredAlert(nil), m.alerts...)
}

type recordedMetric struct {
	domain, metric string
	value          float64
}

type fakeRecorder struct {
	mu      sync.Mutex
	samples []recordedMetric
}

func (r *fakeRecorder) RecordMetric(domainID, metricName string, value float64, unit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, recordedMetric{domainID, metricName, value})
	return nil
}

func (r *fakeRecorder) find(domain, metric string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.samples) - 1; i >= 0; i-- {
		if r.samples[i].domain == domain && r.samples[i].metric == metric {
			return r.samples[i].value, true
		}
	}
	return 0, false
}

type fakeSource map[string]float64

func (f fakeSource) Query(ctx context.Context, query string) (float64, error) {
	v, ok := f[query]
	if !ok {
		return 0, prometheus.ErrNoData
	}
	return v, nil
}

type panicClassifier struct{}

func (panicClassifier) Classify(ctx context.Context, signalRef string) (storage.ProcessingResult, error) {
	panic("classifier exploded")
}

// slowClassifier holds each call for delay and signals entered on the first one
type slowClassifier struct {
	delay   time.Duration
	entered chan struct{}
	once    sync.Once
}

func newSlowClassifier(delay time.Duration) *slowClassifier {
	return &slowClassifier{delay: delay, entered: make(chan struct{})}
}

func (c *slowClassifier) Classify(ctx context.Context, signalRef string) (storage.ProcessingResult, error) {
	c.once.Do(func() { close(c.entered) })
	time.Sleep(c.delay)
	return storage.ProcessingResult{Label: "ambient", Confidence: 0.1}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.Backoff = 10 * time.Millisecond
	cfg.CallTimeout = 200 * time.Millisecond
	cfg.Now = func() time.Time { return baseTime }
	return cfg
}

func lastSeen(d time.Duration) *time.Time {
	t := baseTime.Add(-d)
	return &t
}

func TestLiveness_MarksStaleDeviceOfflineOnce(t *testing.T) {
	store := newMemStore()
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Name: "North Gate", Type: "camera", Status: storage.DeviceOnline, LastSeenAt: lastSeen(2 * time.Hour)}
	store.devices["cam-2"] = storage.Device{ID: "cam-2", Name: "South Gate", Type: "camera", Status: storage.DeviceOnline, LastSeenAt: lastSeen(10 * time.Minute)}

	log := alert.NewLog(10)
	s := NewScheduler(testConfig(), Deps{Store: store, Alerts: log})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Liveness.MarkedOffline)
	assert.Equal(t, storage.DeviceOffline, store.devices["cam-1"].Status)
	assert.Equal(t, storage.DeviceOnline, store.devices["cam-2"].Status)

	events := log.Recent(0, nil)
	require.Len(t, events, 1)
	assert.Equal(t, alert.KindDeviceOffline, events[0].Kind)
	assert.Equal(t, threshold.Warning, events[0].Status)
	assert.Equal(t, "Device North Gate has been offline for more than 1 hour", events[0].Message)
	assert.Equal(t, "camera", events[0].Metadata["device_type"])
	assert.Equal(t, baseTime.Add(-2*time.Hour).Format(time.RFC3339), events[0].Metadata["last_seen"])

	saved := store.savedAlerts()
	require.Len(t, saved, 1)
	assert.Equal(t, events[0].ID, saved[0].ID)
	assert.Equal(t, "warning", saved[0].Severity)

	// already offline, not selected again
	report = s.RunOnce(context.Background())
	assert.Equal(t, 0, report.Liveness.Stale)
	assert.Equal(t, 1, log.Len())
}

func TestLiveness_FailedStatusWriteRaisesNoAlert(t *testing.T) {
	store := newMemStore()
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Status: storage.DeviceOnline, LastSeenAt: lastSeen(3 * time.Hour)}
	store.statusErr["cam-1"] = errors.New("disk full")

	log := alert.NewLog(10)
	s := NewScheduler(testConfig(), Deps{Store: store, Alerts: log})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Liveness.Failed)
	assert.Equal(t, 0, report.Liveness.MarkedOffline)
	assert.Equal(t, 0, log.Len())
}

func TestLiveness_SQLiteEndToEnd(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "sched-*.db")
	require.NoError(t, err)
	tmpfile.Close()
	defer os.Remove(tmpfile.Name())

	db, err := sqlstore.OpenSQLite(tmpfile.Name())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.UpsertDevice(ctx, storage.Device{
		ID: "sensor-9", Name: "Dock Sensor", Type: "acoustic",
		LastSeenAt: lastSeen(90 * time.Minute), CreatedAt: baseTime.Add(-48 * time.Hour),
	}))

	log := alert.NewLog(10)
	s := NewScheduler(testConfig(), Deps{Store: db, Alerts: log})

	s.RunOnce(ctx)
	s.RunOnce(ctx)

	d, err := db.GetDevice(ctx, "sensor-9")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, storage.DeviceOffline, d.Status)

	alerts, err := db.ListAlerts(ctx, storage.AlertFilter{Kind: string(alert.KindDeviceOffline)})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, 1, log.Len())
}

func TestDrain_ClassifiesAndRaisesAlerts(t *testing.T) {
	classifier := synthetic.NewClassifier()
	classifier.SetFixture("sig-high", synthetic.Fixture{Label: "gunshot", Detected: true, Confidence: 0.95})
	classifier.SetFixture("sig-mid", synthetic.Fixture{Label: "glass_break", Detected: true, Confidence: 0.8})
	classifier.SetFixture("sig-low", synthetic.Fixture{Label: "voice", Detected: true, Confidence: 0.7})
	classifier.SetFixture("sig-none", synthetic.Fixture{Label: "ambient", Detected: false, Confidence: 0.99})

	store := newMemStore()
	for _, id := range []string{"high", "mid", "low", "none"} {
		store.items = append(store.items, storage.WorkItem{ID: id, DeviceID: "mic-1", SignalRef: "sig-" + id})
	}

	log := alert.NewLog(10)
	cfg := testConfig()
	cfg.Workers = 2
	s := NewScheduler(cfg, Deps{Store: store, Classifier: classifier, Alerts: log})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 4, report.Drain.Fetched)
	assert.Equal(t, 4, report.Drain.Processed)
	assert.Equal(t, 2, report.Drain.Alerts)

	for _, id := range []string{"high", "mid", "low", "none"} {
		it := store.item(id)
		assert.True(t, it.Processed, id)
		require.NotNil(t, it.Result, id)
	}

	bySeverity := make(map[string]storage.StoredAlert)
	for _, a := range store.savedAlerts() {
		assert.Equal(t, string(alert.KindDetection), a.Kind)
		bySeverity[a.Severity] = a
	}
	require.Len(t, bySeverity, 2)
	assert.Equal(t, "high", bySeverity["critical"].Metadata["telemetry_id"])
	assert.Equal(t, "mid", bySeverity["violation"].Metadata["telemetry_id"])
	require.NotNil(t, bySeverity["critical"].Confidence)
	assert.InDelta(t, 0.95, *bySeverity["critical"].Confidence, 1e-9)
}

func TestDrain_BatchLimit(t *testing.T) {
	classifier := synthetic.NewClassifier()
	store := newMemStore()
	for i := 0; i < 7; i++ {
		store.items = append(store.items, storage.WorkItem{ID: string(rune('a' + i)), SignalRef: "unknown"})
	}

	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: classifier})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 5, report.Drain.Fetched)

	report = s.RunOnce(context.Background())
	assert.Equal(t, 2, report.Drain.Fetched)
}

func TestDrain_ProcessingFailureAlert(t *testing.T) {
	classifier := synthetic.NewClassifier()
	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", DeviceID: "mic-2", SignalRef: "missing"}}

	log := alert.NewLog(10)
	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: classifier, Alerts: log})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Drain.Processed)

	it := store.item("t-1")
	assert.True(t, it.Processed)
	require.NotNil(t, it.Result)
	assert.Equal(t, synthetic.ErrorUnknownSignal, it.Result.ErrorKind)

	events := log.Recent(0, nil)
	require.Len(t, events, 1)
	assert.Equal(t, alert.KindProcessingFailure, events[0].Kind)
	assert.Equal(t, threshold.Warning, events[0].Status)
}

func TestDrain_SkipsItemWithoutSignalRef(t *testing.T) {
	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", DeviceID: "mic-1"}}

	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: synthetic.NewClassifier()})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Drain.Skipped)
	assert.False(t, store.item("t-1").Processed)
}

func TestDrain_TimeoutLeavesItemPending(t *testing.T) {
	classifier := synthetic.NewClassifier()
	classifier.SetFixture("slow", synthetic.Fixture{Label: "x", Delay: time.Second})

	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", SignalRef: "slow"}}

	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	s := NewScheduler(cfg, Deps{Store: store, Classifier: classifier})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Drain.Failed)
	assert.False(t, store.item("t-1").Processed)
	assert.Empty(t, report.PassErrors)
}

func TestDrain_LateMarkProcessedStillRaisesAlert(t *testing.T) {
	classifier := synthetic.NewClassifier()
	classifier.SetFixture("sig-1", synthetic.Fixture{Label: "gunshot", Detected: true, Confidence: 0.95})

	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", DeviceID: "mic-1", SignalRef: "sig-1"}}
	store.markDelay = 100 * time.Millisecond

	log := alert.NewLog(10)
	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	s := NewScheduler(cfg, Deps{Store: store, Classifier: classifier, Alerts: log})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Drain.Failed)
	assert.Equal(t, 0, report.Drain.Alerts)

	assert.Eventually(t, func() bool { return len(store.savedAlerts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, store.item("t-1").Processed)

	saved := store.savedAlerts()[0]
	assert.Equal(t, string(alert.KindDetection), saved.Kind)
	assert.Equal(t, "t-1", saved.Metadata["telemetry_id"])
	assert.Equal(t, 1, log.Len())

	// nothing left pending for the next tick to pick up twice
	report = s.RunOnce(context.Background())
	assert.Equal(t, 0, report.Drain.Fetched)
}

func TestDrain_ClassifierPanicIsContained(t *testing.T) {
	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", SignalRef: "boom"}}
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Status: storage.DeviceOnline, LastSeenAt: lastSeen(2 * time.Hour)}

	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: panicClassifier{}})

	report := s.RunOnce(context.Background())
	assert.False(t, report.Failed())
	assert.Equal(t, 1, report.Drain.Failed)
	assert.False(t, store.item("t-1").Processed)
	// later passes still ran
	assert.Equal(t, 1, report.Liveness.MarkedOffline)
}

func TestDrain_FetchErrorDoesNotStopOtherPasses(t *testing.T) {
	store := newMemStore()
	store.fetchErr = errors.New("connection reset")
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Status: storage.DeviceOnline, LastSeenAt: lastSeen(2 * time.Hour)}

	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: synthetic.NewClassifier()})

	report := s.RunOnce(context.Background())
	require.Len(t, report.PassErrors, 1)
	assert.Equal(t, "drain", report.PassErrors[0].Pass)
	assert.Equal(t, 1, report.Liveness.MarkedOffline)
}

func TestPurge_UsesRetentionCutoffs(t *testing.T) {
	store := newMemStore()
	store.purgeCount[storage.KindTelemetry] = 12
	store.purgeCount[storage.KindResolvedAlerts] = 3

	s := NewScheduler(testConfig(), Deps{Store: store})

	report := s.RunOnce(context.Background())
	assert.Equal(t, int64(12), report.Purge.Telemetry)
	assert.Equal(t, int64(3), report.Purge.ResolvedAlerts)
	assert.Equal(t, baseTime.Add(-30*24*time.Hour), store.purgeCalls[storage.KindTelemetry])
	assert.Equal(t, baseTime.Add(-7*24*time.Hour), store.purgeCalls[storage.KindResolvedAlerts])
}

func TestPurge_AttemptsBothOnFailure(t *testing.T) {
	store := newMemStore()
	store.purgeErr[storage.KindTelemetry] = errors.New("locked")
	store.purgeCount[storage.KindResolvedAlerts] = 4

	s := NewScheduler(testConfig(), Deps{Store: store})

	report := s.RunOnce(context.Background())
	assert.Equal(t, int64(4), report.Purge.ResolvedAlerts)
	require.Len(t, report.PassErrors, 1)
	assert.Equal(t, "purge", report.PassErrors[0].Pass)
}

func TestScrape_RecordsCatalogQueries(t *testing.T) {
	catalog, err := threshold.NewCatalog([]threshold.Spec{
		{DomainID: "NFR-01", MetricName: "p95_latency_ms", Target: 100, Warning: 110, Critical: 120, Unit: "ms", Direction: threshold.LowerIsBetter, Query: "latency"},
		{DomainID: "NFR-02", MetricName: "uptime", Target: 99.9, Warning: 99.5, Critical: 99, Unit: "%", Direction: threshold.HigherIsBetter, Query: "absent"},
		{DomainID: "NFR-03", MetricName: "manual", Target: 1, Warning: 2, Critical: 3, Direction: threshold.LowerIsBetter},
	})
	require.NoError(t, err)

	rec := &fakeRecorder{}
	s := NewScheduler(testConfig(), Deps{
		Recorder: rec,
		Source:   fakeSource{"latency": 105},
		Catalog:  catalog,
	})

	report := s.RunOnce(context.Background())
	assert.Equal(t, 2, report.Scrape.Queried)
	assert.Equal(t, 1, report.Scrape.Recorded)
	assert.Equal(t, 0, report.Scrape.Failed)

	v, ok := rec.find("NFR-01", "p95_latency_ms")
	require.True(t, ok)
	assert.Equal(t, 105.0, v)
}

func TestDerivedMetrics(t *testing.T) {
	classifier := synthetic.NewClassifier()
	classifier.SetFixture("ok", synthetic.Fixture{Label: "ambient"})
	classifier.SetFixture("bad", synthetic.Fixture{Err: "model unavailable"})

	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "1", SignalRef: "ok"}, {ID: "2", SignalRef: "bad"}}
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Status: storage.DeviceOnline, LastSeenAt: lastSeen(2 * time.Hour)}

	rec := &fakeRecorder{}
	s := NewScheduler(testConfig(), Deps{Store: store, Classifier: classifier, Recorder: rec})
	s.RunOnce(context.Background())

	rate, ok := rec.find(threshold.ReconDomain, "drain_failure_rate")
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)

	offline, ok := rec.find(threshold.ReconDomain, "offline_devices")
	require.True(t, ok)
	assert.Equal(t, 1.0, offline)

	_, ok = rec.find(threshold.ReconDomain, "tick_duration_ms")
	assert.True(t, ok)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	store := newMemStore()
	store.devices["cam-1"] = storage.Device{ID: "cam-1", Status: storage.DeviceOnline, LastSeenAt: lastSeen(2 * time.Hour)}

	s := NewScheduler(testConfig(), Deps{Store: store})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := s.RunOnce(ctx)
	assert.True(t, report.Cancelled)
	assert.Equal(t, storage.DeviceOnline, store.devices["cam-1"].Status)
}

func TestNewScheduler_ZeroFieldsTakeDefaults(t *testing.T) {
	s := NewScheduler(Config{HighConfidence: 0.95}, Deps{})
	def := DefaultConfig()

	assert.Equal(t, def.Interval, s.cfg.Interval)
	assert.Equal(t, def.BatchSize, s.cfg.BatchSize)
	assert.Equal(t, def.DetectionThreshold, s.cfg.DetectionThreshold)
	assert.Equal(t, 0.95, s.cfg.HighConfidence)
	assert.NotNil(t, s.cfg.Now)
}

func TestStartStop(t *testing.T) {
	store := newMemStore()
	s := NewScheduler(testConfig(), Deps{Store: store})

	assert.ErrorIs(t, s.Stop(time.Second), ErrNotRunning)

	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return s.Stats().Ticks >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(time.Second))
	assert.False(t, s.Running())
	assert.ErrorIs(t, s.Stop(time.Second), ErrNotRunning)

	// restartable
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(time.Second))
}

func TestStop_WaitsForInFlightTick(t *testing.T) {
	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", DeviceID: "mic-1", SignalRef: "sig-1"}}
	classifier := newSlowClassifier(200 * time.Millisecond)

	cfg := testConfig()
	cfg.CallTimeout = time.Second
	cfg.Interval = time.Hour
	s := NewScheduler(cfg, Deps{Store: store, Classifier: classifier})

	require.NoError(t, s.Start())
	select {
	case <-classifier.entered:
	case <-time.After(time.Second):
		t.Fatal("classifier was never called")
	}

	require.NoError(t, s.Stop(time.Second))
	assert.True(t, store.item("t-1").Processed, "Stop returned before the in-flight item finished")

	last := s.Stats().LastTick
	require.NotNil(t, last)
	assert.True(t, last.Cancelled)
	assert.Equal(t, 1, last.Drain.Processed)

	store.mu.Lock()
	assert.Empty(t, store.purgeCalls, "passes after drain must not run once stopped")
	store.mu.Unlock()
}

func TestStop_TimesOutOnSlowTick(t *testing.T) {
	store := newMemStore()
	store.items = []storage.WorkItem{{ID: "t-1", DeviceID: "mic-1", SignalRef: "sig-1"}}
	classifier := newSlowClassifier(200 * time.Millisecond)

	cfg := testConfig()
	cfg.CallTimeout = time.Second
	cfg.Interval = time.Hour
	s := NewScheduler(cfg, Deps{Store: store, Classifier: classifier})

	require.NoError(t, s.Start())
	<-classifier.entered

	assert.ErrorIs(t, s.Stop(10*time.Millisecond), ErrStopTimeout)
	assert.False(t, s.Running())

	// the abandoned tick still finishes its item
	assert.Eventually(t, func() bool { return store.item("t-1").Processed }, time.Second, 5*time.Millisecond)
}

func TestCall_TimeoutIgnoringContext(t *testing.T) {
	start := time.Now()
	_, err := call(context.Background(), 20*time.Millisecond, "stuck", func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCollaboratorTimeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestCall_WrapsErrors(t *testing.T) {
	cause := errors.New("boom")
	err := callErr(context.Background(), time.Second, "op", func(ctx context.Context) error { return cause })
	assert.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, cause)
}

func TestFormatWindow(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{30 * time.Minute, "30 minutes"},
		{48 * time.Hour, "2 days"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatWindow(tt.in))
	}
}
