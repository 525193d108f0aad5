package storage

// schemaDDL bootstraps the three-table schema. The control plane owns
// schema evolution; this exists so a fresh environment can be stood up
// with `quarry init-db`.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_settings (
	id                   BIGSERIAL PRIMARY KEY,
	user_id              BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	export_location      TEXT,
	export_type          TEXT,
	max_parallel_queries INTEGER,
	ssh_hostname         TEXT,
	ssh_port             INTEGER,
	ssh_username         TEXT,
	ssh_password         TEXT,
	ssh_key              TEXT,
	ssh_key_passphrase   TEXT
);

CREATE TABLE IF NOT EXISTS queries (
	id              BIGSERIAL PRIMARY KEY,
	user_id         BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	query_text      TEXT NOT NULL,
	db_username     TEXT NOT NULL,
	db_password     TEXT NOT NULL,
	db_tns          TEXT NOT NULL,
	export_location TEXT,
	export_type     TEXT,
	export_filename TEXT,
	ssh_hostname    TEXT,
	status          TEXT NOT NULL DEFAULT 'pending',
	error_message   TEXT,
	result_metadata JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at      TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_queries_status_user_created
	ON queries (status, user_id, created_at);
`
