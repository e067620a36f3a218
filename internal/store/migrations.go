package store

const createTableSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    run_id            TEXT PRIMARY KEY,
    hostname          TEXT NOT NULL,
    platform          TEXT NOT NULL DEFAULT '',
    platform_version  TEXT NOT NULL DEFAULT '',
    kernel_version    TEXT NOT NULL DEFAULT '',
    collector         TEXT NOT NULL,
    collected_at      TEXT NOT NULL,
    stored_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS components (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES snapshots(run_id) ON DELETE CASCADE,
    seq           INTEGER NOT NULL,
    kind          TEXT NOT NULL,
    name          TEXT NOT NULL,
    component_id  TEXT NOT NULL,
    version       TEXT NOT NULL DEFAULT '',
    path          TEXT NOT NULL DEFAULT '',
    modified      TEXT NOT NULL DEFAULT '',
    publishers    TEXT NOT NULL DEFAULT '[]',
    raw_info      TEXT,
    UNIQUE (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_hostname ON snapshots(hostname);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected_at ON snapshots(collected_at);
CREATE INDEX IF NOT EXISTS idx_components_run_id ON components(run_id);
CREATE INDEX IF NOT EXISTS idx_components_kind ON components(kind);
`
