package mysql

// schemaStatements are executed one at a time at startup; MySQL DDL is not
// transactional, so each CREATE is idempotent on its own.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS document_types (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		required_stages TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id VARCHAR(64) PRIMARY KEY,
		document_type_id VARCHAR(64) NOT NULL,
		requester_id VARCHAR(64) NOT NULL,
		stages TEXT NOT NULL,
		current_stage_index INT NOT NULL DEFAULT 0,
		current_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		is_completed TINYINT(1) NOT NULL DEFAULT 0,
		last_activity_at DATETIME(6) NOT NULL,
		escalated TINYINT(1) NOT NULL DEFAULT 0,
		escalation_level INT NOT NULL DEFAULT 0,
		escalated_at DATETIME(6) NULL,
		rejection_reason TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		CONSTRAINT fk_requests_doctype FOREIGN KEY (document_type_id) REFERENCES document_types(id),
		INDEX idx_requests_sweep (current_status, is_completed, last_activity_at),
		INDEX idx_requests_requester (requester_id)
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_history (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		request_id VARCHAR(64) NOT NULL,
		escalation_level INT NOT NULL,
		escalated_by VARCHAR(64) NOT NULL,
		reason TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		CONSTRAINT fk_history_request FOREIGN KEY (request_id) REFERENCES requests(id) ON DELETE CASCADE,
		INDEX idx_escalation_history_request (request_id, created_at)
	)`,
}
