package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    tier TEXT NOT NULL,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at TIMESTAMP NOT NULL,
    device_serial TEXT,
    device_model TEXT,
    package_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL,
    package TEXT NOT NULL,
    action TEXT NOT NULL,
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    reason TEXT,
    package_count INTEGER,
    snapshot_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_packages (
    snapshot_id INTEGER NOT NULL,
    package_name TEXT NOT NULL,
    status TEXT NOT NULL,
    tier TEXT,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_actions_batch ON actions(batch_id);
CREATE INDEX IF NOT EXISTS idx_actions_package ON actions(package);
CREATE INDEX IF NOT EXISTS idx_snapshot_packages ON snapshot_packages(snapshot_id);
`
