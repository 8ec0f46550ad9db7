package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/brightpath-solar/siteimg/pkg/report"
	_ "modernc.org/sqlite"
)

// Repository provides the history ledger operations
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the ledger at dbPath.
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Worker goroutines record concurrently; SQLite wants one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a ledger row and sets its ID.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO artifacts (run_id, tool, name, path, format, width, status, size, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.RunID, rec.Tool, rec.Name, rec.Path, rec.Format,
		rec.Width, rec.Status, rec.Size, rec.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", rec.RunID, "name", rec.Name, "error", err)
		return errors.Wrap(err, "failed to insert artifact")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "name", rec.Name, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	rec.ID = id

	return nil
}

// Record implements report.Recorder.
func (r *Repository) Record(ctx context.Context, runID, tool string, o report.Outcome) error {
	status := StatusSucceeded
	if o.Status == report.StatusFailed {
		status = StatusFailed
	}
	return r.Create(ctx, &Record{
		RunID:        runID,
		Tool:         tool,
		Name:         o.Name,
		Path:         o.Path,
		Format:       o.Format,
		Width:        o.Width,
		Status:       status,
		Size:         o.Size,
		ErrorMessage: o.ErrorMessage(),
	})
}

// List returns the most recent rows, newest first. limit <= 0 returns all.
func (r *Repository) List(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, run_id, tool, name, path, format, width, status, size, error_message, created_at
		FROM artifacts ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list artifacts")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var path, format, errorMessage sql.NullString

		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Tool, &rec.Name, &path, &format,
			&rec.Width, &rec.Status, &rec.Size, &errorMessage, &rec.CreatedAt)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}

		rec.Path = path.String
		rec.Format = format.String
		rec.ErrorMessage = errorMessage.String

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	return records, nil
}

// ListByRun returns the rows of one run in insertion order.
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]*Record, error) {
	query := `
		SELECT id, run_id, tool, name, path, format, width, status, size, error_message, created_at
		FROM artifacts WHERE run_id = ? ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		slog.Error("database_run_query_failed", "run_id", runID, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var path, format, errorMessage sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Tool, &rec.Name, &path, &format,
			&rec.Width, &rec.Status, &rec.Size, &errorMessage, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		rec.Path = path.String
		rec.Format = format.String
		rec.ErrorMessage = errorMessage.String
		records = append(records, &rec)
	}
	return records, errors.Wrap(rows.Err(), "rows error")
}

// DeleteByPath removes the rows that point at path, used when the artifact
// itself is cleaned from disk.
func (r *Repository) DeleteByPath(ctx context.Context, path string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE path = ?`, path)
	if err != nil {
		slog.Error("database_delete_failed", "path", path, "error", err)
		return 0, errors.Wrap(err, "failed to delete artifacts")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_artifacts_deleted", "path", path, "rows", n)
	return n, nil
}
