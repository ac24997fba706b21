package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghcopilot/internal/logging"

	_ "modernc.org/sqlite"
)

// Journal records diagnostics in a sqlite database so failures survive the
// panel being closed. `copilot diagnostics` reads it back.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// OpenJournal creates or opens the journal at path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, dbPath: path}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnostics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_unix_ms INTEGER NOT NULL,
		level TEXT NOT NULL,
		source TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_diagnostics_at ON diagnostics(at_unix_ms);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Report implements Sink. Write failures are logged, never returned to the UI.
func (j *Journal) Report(d Diagnostic) {
	if err := j.Record(context.Background(), d); err != nil {
		logging.Get(logging.CategoryDiagnostics).Error("journal write failed: %v", err)
	}
}

// Record inserts d.
func (j *Journal) Record(ctx context.Context, d Diagnostic) error {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO diagnostics (at_unix_ms, level, source, message) VALUES (?, ?, ?, ?)`,
		at.UnixMilli(), string(d.Level), d.Source, d.Message)
	return err
}

// Recent returns up to limit diagnostics, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Diagnostic, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at_unix_ms, level, source, message FROM diagnostics ORDER BY at_unix_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var (
			ms    int64
			level string
			d     Diagnostic
		)
		if err := rows.Scan(&ms, &level, &d.Source, &d.Message); err != nil {
			return nil, err
		}
		d.Level = Level(level)
		d.At = time.UnixMilli(ms)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune deletes diagnostics older than cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM diagnostics WHERE at_unix_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
