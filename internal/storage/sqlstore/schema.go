package sqlstore

// sqliteSchema defines the SQLite database schema
const sqliteSchema = `
-- Registered devices
CREATE TABLE IF NOT EXISTS devices (
	device_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	device_type TEXT NOT NULL,
	status TEXT NOT NULL,
	last_seen_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_devices_status_last_seen ON devices(status, last_seen_at);

-- Telemetry records, classified by the reconciliation loop
CREATE TABLE IF NOT EXISTS telemetry (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	data_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	signal_ref TEXT,
	processed BOOLEAN NOT NULL DEFAULT 0,
	result_json TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_telemetry_pending ON telemetry(processed, created_at);
CREATE INDEX IF NOT EXISTS idx_telemetry_created_at ON telemetry(created_at);

-- Persisted alerts
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	confidence REAL,
	state TEXT NOT NULL,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	acknowledged_at TIMESTAMP,
	resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_state_resolved ON alerts(state, resolved_at);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`

// postgresSchema defines the PostgreSQL database schema
const postgresSchema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	device_type TEXT NOT NULL,
	status TEXT NOT NULL,
	last_seen_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_devices_status_last_seen ON devices(status, last_seen_at);

CREATE TABLE IF NOT EXISTS telemetry (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	data_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	signal_ref TEXT,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	result_json TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_telemetry_pending ON telemetry(processed, created_at);
CREATE INDEX IF NOT EXISTS idx_telemetry_created_at ON telemetry(created_at);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	confidence DOUBLE PRECISION,
	state TEXT NOT NULL,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	acknowledged_at TIMESTAMPTZ,
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_alerts_state_resolved ON alerts(state, resolved_at);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`
