package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samijaber1/aegis-compliance/internal/storage"
)

// ErrNotFound is storage.ErrNotFound, re-exported for callers holding a *Store
var ErrNotFound = storage.ErrNotFound

// Store implements storage.RecordStore on database/sql
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.RecordStore = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") and applies the schema
func Open(driver, dsn string) (*Store, error) {
	switch Dialect(driver) {
	case SQLite:
		return OpenSQLite(dsn)
	case Postgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
}

// OpenSQLite creates a SQLite-backed store at dbPath
func OpenSQLite(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return newStore(db, SQLite)
}

// OpenPostgres creates a PostgreSQL-backed store from a lib/pq connection string
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return newStore(db, Postgres)
}

func newStore(db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.Exec(dialect.schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// UpsertDevice creates or updates a device
func (s *Store) UpsertDevice(ctx context.Context, d storage.Device) error {
	if d.Status == "" {
		d.Status = storage.DeviceOnline
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO devices (device_id, name, device_type, status, last_seen_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			device_type = excluded.device_type,
			status = excluded.status,
			last_seen_at = excluded.last_seen_at
	`

	_, err := s.exec(ctx, query,
		d.ID,
		d.Name,
		d.Type,
		string(d.Status),
		nullTime(d.LastSeenAt),
		d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", d.ID, err)
	}

	return nil
}

// GetDevice retrieves a device
func (s *Store) GetDevice(ctx context.Context, deviceID string) (*storage.Device, error) {
	query := `
		SELECT device_id, name, device_type, status, last_seen_at, created_at
		FROM devices
		WHERE device_id = ?
	`

	d, err := scanDevice(s.queryRow(ctx, query, deviceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return d, nil
}

// Heartbeat records that a device was seen and marks it online
func (s *Store) Heartbeat(ctx context.Context, deviceID string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE devices SET last_seen_at = ?, status = ? WHERE device_id = ?",
		at.UTC(), string(storage.DeviceOnline), deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return expectRow(res, "device", deviceID)
}

// SetDeviceStatus transitions a device to status
func (s *Store) SetDeviceStatus(ctx context.Context, deviceID string, status storage.DeviceStatus) error {
	res, err := s.exec(ctx,
		"UPDATE devices SET status = ? WHERE device_id = ?",
		string(status), deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}

	return expectRow(res, "device", deviceID)
}

// FindStale returns devices last seen before cutoff that are not already offline
func (s *Store) FindStale(ctx context.Context, cutoff time.Time) ([]storage.Device, error) {
	query := `
		SELECT device_id, name, device_type, status, last_seen_at, created_at
		FROM devices
		WHERE last_seen_at < ? AND status != ?
		ORDER BY last_seen_at
	`

	rows, err := s.query(ctx, query, cutoff.UTC(), string(storage.DeviceOffline))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale devices: %w", err)
	}
	defer rows.Close()

	var devices []storage.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return devices, nil
}

// InsertTelemetry stores a telemetry record. An empty signal reference is stored as NULL.
func (s *Store) InsertTelemetry(ctx context.Context, item storage.WorkItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	resultJSON, err := marshalResult(item.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO telemetry (id, device_id, data_type, payload, signal_ref, processed, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.exec(ctx, query,
		item.ID,
		item.DeviceID,
		item.DataType,
		item.Payload,
		sql.NullString{String: item.SignalRef, Valid: item.SignalRef != ""},
		item.Processed,
		resultJSON,
		item.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry %s: %w", item.ID, err)
	}

	return nil
}

// GetTelemetry retrieves a telemetry record
func (s *Store) GetTelemetry(ctx context.Context, id string) (*storage.WorkItem, error) {
	query := `
		SELECT id, device_id, data_type, payload, signal_ref, processed, result_json, created_at
		FROM telemetry
		WHERE id = ?
	`

	item, err := scanWorkItem(s.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get telemetry: %w", err)
	}

	return item, nil
}

// FetchPending returns up to limit unprocessed records that carry a signal reference
func (s *Store) FetchPending(ctx context.Context, limit int) ([]storage.WorkItem, error) {
	query := `
		SELECT id, device_id, data_type, payload, signal_ref, processed, result_json, created_at
		FROM telemetry
		WHERE processed = ? AND signal_ref IS NOT NULL
		ORDER BY created_at
		LIMIT ?
	`

	rows, err := s.query(ctx, query, false, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending telemetry: %w", err)
	}
	defer rows.Close()

	var items []storage.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// MarkProcessed flags a record as processed and attaches the result
func (s *Store) MarkProcessed(ctx context.Context, id string, result storage.ProcessingResult) error {
	resultJSON, err := marshalResult(&result)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx,
		"UPDATE telemetry SET processed = ?, result_json = ? WHERE id = ?",
		true, resultJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark telemetry processed: %w", err)
	}

	return expectRow(res, "telemetry", id)
}

// SaveAlert persists an alert
func (s *Store) SaveAlert(ctx context.Context, a storage.StoredAlert) error {
	if a.State == "" {
		a.State = storage.AlertActive
	}

	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var confidence sql.NullFloat64
	if a.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *a.Confidence, Valid: true}
	}

	query := `
		INSERT INTO alerts (id, device_id, kind, severity, message, confidence, state, metadata_json, created_at, acknowledged_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.exec(ctx, query,
		a.ID,
		a.DeviceID,
		a.Kind,
		a.Severity,
		a.Message,
		confidence,
		string(a.State),
		string(metadataJSON),
		a.CreatedAt.UTC(),
		nullTime(a.AcknowledgedAt),
		nullTime(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
	}

	return nil
}

// ListAlerts retrieves persisted alerts with optional filtering
func (s *Store) ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]storage.StoredAlert, error) {
	query := `
		SELECT id, device_id, kind, severity, message, confidence, state, metadata_json, created_at, acknowledged_at, resolved_at
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, filter.DeviceID)
	}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}

	if filter.State != "" {
		query += " AND state = ?"
		args = append(args, string(filter.State))
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []storage.StoredAlert
	for rows.Next() {
		var a storage.StoredAlert
		var state, metadataJSON string
		var confidence sql.NullFloat64
		var acknowledgedAt, resolvedAt sql.NullTime

		err := rows.Scan(
			&a.ID,
			&a.DeviceID,
			&a.Kind,
			&a.Severity,
			&a.Message,
			&confidence,
			&state,
			&metadataJSON,
			&a.CreatedAt,
			&acknowledgedAt,
			&resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		a.State = storage.AlertState(state)
		if confidence.Valid {
			c := confidence.Float64
			a.Confidence = &c
		}
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			a.AcknowledgedAt = &t
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		if err := json.Unmarshal([]byte(metadataJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert moves an active alert to acknowledged. Alerts in any
// other state are left untouched and ErrInvalidTransition is returned.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE alerts SET state = ?, acknowledged_at = ? WHERE id = ? AND state = ?",
		string(storage.AlertAcknowledged), at.UTC(), id, string(storage.AlertActive),
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var state string
	err = s.queryRow(ctx, "SELECT state FROM alerts WHERE id = ?", id).Scan(&state)
	if err == sql.ErrNoRows {
		return fmt.Errorf("alert %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get alert state: %w", err)
	}

	return fmt.Errorf("alert %s is %s: %w", id, state, storage.ErrInvalidTransition)
}

// ResolveAlert marks an alert resolved
func (s *Store) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE alerts SET state = ?, resolved_at = ? WHERE id = ?",
		string(storage.AlertResolved), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	return expectRow(res, "alert", id)
}

// PurgeOlderThan deletes records of kind older than cutoff
func (s *Store) PurgeOlderThan(ctx context.Context, kind storage.RecordKind, cutoff time.Time) (int64, error) {
	var res sql.Result
	var err error

	switch kind {
	case storage.KindTelemetry:
		res, err = s.exec(ctx, "DELETE FROM telemetry WHERE created_at < ?", cutoff.UTC())
	case storage.KindResolvedAlerts:
		res, err = s.exec(ctx,
			"DELETE FROM alerts WHERE state = ? AND resolved_at < ?",
			string(storage.AlertResolved), cutoff.UTC(),
		)
	default:
		return 0, fmt.Errorf("unknown record kind: %q", kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", kind, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged %s: %w", kind, err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row scanner) (*storage.Device, error) {
	var d storage.Device
	var status string
	var lastSeen sql.NullTime

	if err := row.Scan(&d.ID, &d.Name, &d.Type, &status, &lastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}

	d.Status = storage.DeviceStatus(status)
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeenAt = &t
	}

	return &d, nil
}

func scanWorkItem(row scanner) (*storage.WorkItem, error) {
	var item storage.WorkItem
	var signalRef, resultJSON sql.NullString

	err := row.Scan(
		&item.ID,
		&item.DeviceID,
		&item.DataType,
		&item.Payload,
		&signalRef,
		&item.Processed,
		&resultJSON,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.SignalRef = signalRef.String
	if resultJSON.Valid && resultJSON.String != "" {
		var result storage.ProcessingResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		item.Result = &result
	}

	return &item, nil
}

func marshalResult(result *storage.ProcessingResult) (sql.NullString, error) {
	if result == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
