package sqlite

const schema = `
-- Document types table
CREATE TABLE IF NOT EXISTS document_types (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    required_stages TEXT NOT NULL,  -- JSON array of stage names
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Requests table
CREATE TABLE IF NOT EXISTS requests (
    id TEXT PRIMARY KEY,
    document_type_id TEXT NOT NULL REFERENCES document_types(id),
    requester_id TEXT NOT NULL,
    stages TEXT NOT NULL,           -- JSON array, frozen at creation
    current_stage_index INTEGER NOT NULL DEFAULT 0 CHECK(current_stage_index >= 0),
    current_status TEXT NOT NULL DEFAULT 'pending',
    is_completed INTEGER NOT NULL DEFAULT 0,
    last_activity_at DATETIME NOT NULL,
    escalated INTEGER NOT NULL DEFAULT 0,
    escalation_level INTEGER NOT NULL DEFAULT 0 CHECK(escalation_level >= 0),
    escalated_at DATETIME,
    rejection_reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 1
);

-- Escalation history table (append-only audit ledger)
CREATE TABLE IF NOT EXISTS escalation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
    escalation_level INTEGER NOT NULL,
    escalated_by TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Sweep eligibility scan: status + completion + staleness cutoff
CREATE INDEX IF NOT EXISTS idx_requests_sweep
    ON requests(current_status, is_completed, last_activity_at);

CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id);

CREATE INDEX IF NOT EXISTS idx_escalation_history_request
    ON escalation_history(request_id, created_at);
`
