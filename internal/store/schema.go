package store

const schema = `
CREATE TABLE IF NOT EXISTS error_events (
    error_id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    origin TEXT,
    command TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    severity TEXT NOT NULL,
    recovery TEXT NOT NULL,
    trace_path TEXT,
    state_path TEXT,
    notified BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rotations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TIMESTAMP NOT NULL,
    file TEXT NOT NULL,
    rotated_to TEXT NOT NULL,
    pruned_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON error_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_severity ON error_events(severity);
CREATE INDEX IF NOT EXISTS idx_rotations_file ON rotations(file);
CREATE INDEX IF NOT EXISTS idx_rotations_timestamp ON rotations(timestamp);
`
