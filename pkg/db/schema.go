package db

// Schema defines the SQLite history ledger. Every fetcher/optimizer run
// writes one row per artifact it attempted, grouped by run_id.
const Schema = `
CREATE TABLE IF NOT EXISTS artifacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    tool TEXT NOT NULL CHECK(tool IN ('fetch', 'optimize', 'compress', 'publish')),
    name TEXT NOT NULL,
    path TEXT,
    format TEXT,
    width INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('succeeded', 'failed')),
    size INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts(run_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_path ON artifacts(path);
CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
`

// Status constants
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is one ledger row.
type Record struct {
	ID           int64
	RunID        string
	Tool         string
	Name         string
	Path         string
	Format       string
	Width        int
	Status       string
	Size         int64
	ErrorMessage string
	CreatedAt    string
}
