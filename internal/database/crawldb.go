package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "relcrawl.db"

// CrawlDB provides SQLite-based storage for checkpoints and run history.
//
// Design decision: Both partitions live in the same database file as the run
// history. A checkpoint and the run row that produced it can then be read
// together by `relcrawl status`.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

var _ checkpoint.Snapshotter = (*CrawlDB)(nil)

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (use CreateIfNotExists option to create)", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating a new file when the caller expects one.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Partition tables hold the last checkpoint; seq keeps discovery order
	CREATE TABLE IF NOT EXISTS primary_items (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		author_id TEXT NOT NULL DEFAULT '',
		record TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS related_items (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		author_id TEXT NOT NULL DEFAULT '',
		record TEXT NOT NULL
	);

	-- Single row describing the last checkpoint
	CREATE TABLE IF NOT EXISTS snapshot_meta (
		singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
		taken_at TEXT NOT NULL,
		primary_count INTEGER NOT NULL,
		related_count INTEGER NOT NULL
	);

	-- Crawl runs record one row per invocation of the loop
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		state TEXT NOT NULL DEFAULT 'running',
		cycles INTEGER NOT NULL DEFAULT 0,
		successes INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		primary_count INTEGER NOT NULL DEFAULT 0,
		related_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// tableFor maps a partition to its table name.
func tableFor(p model.Partition) (string, error) {
	switch p {
	case model.Primary:
		return "primary_items", nil
	case model.Related:
		return "related_items", nil
	default:
		return "", fmt.Errorf("unknown partition %q", p)
	}
}

// Save replaces both partition tables inside one transaction.
func (cdb *CrawlDB) Save(ctx context.Context, snap checkpoint.Snapshot) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // reporting the original error
		}
	}()

	if err = replacePartition(ctx, tx, model.Primary, snap.Primary); err != nil {
		return err
	}
	if err = replacePartition(ctx, tx, model.Related, snap.Related); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO snapshot_meta (singleton, taken_at, primary_count, related_count)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(singleton) DO UPDATE SET
		taken_at = excluded.taken_at,
		primary_count = excluded.primary_count,
		related_count = excluded.related_count
	`, formatTimestamp(snap.TakenAt), len(snap.Primary), len(snap.Related))
	if err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func replacePartition(ctx context.Context, tx *sql.Tx, p model.Partition, items []model.Item) error {
	table, err := tableFor(p)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { //nolint:gosec // table name is a constant
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (id, seq, author_id, record) VALUES (?, ?, ?, ?)") //nolint:gosec // table name is a constant
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for seq, it := range items {
		record, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("failed to serialize item %q: %w", it.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx, it.ID(), seq, it.AuthorID(), string(record)); err != nil {
			return fmt.Errorf("failed to insert item %q into %s: %w", it.ID(), table, err)
		}
	}
	return nil
}

// Load returns the last saved snapshot, or checkpoint.ErrNoSnapshot when no
// checkpoint has been committed.
func (cdb *CrawlDB) Load(ctx context.Context) (checkpoint.Snapshot, error) {
	var takenAt string
	err := cdb.db.QueryRowContext(ctx, "SELECT taken_at FROM snapshot_meta WHERE singleton = 1").Scan(&takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Snapshot{}, checkpoint.ErrNoSnapshot
	}
	if err != nil {
		return checkpoint.Snapshot{}, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}

	primary, err := cdb.loadPartition(ctx, model.Primary)
	if err != nil {
		return checkpoint.Snapshot{}, err
	}
	related, err := cdb.loadPartition(ctx, model.Related)
	if err != nil {
		return checkpoint.Snapshot{}, err
	}

	return checkpoint.Snapshot{
		Primary: primary,
		Related: related,
		TakenAt: parseTimestamp(takenAt),
	}, nil
}

func (cdb *CrawlDB) loadPartition(ctx context.Context, p model.Partition) ([]model.Item, error) {
	table, err := tableFor(p)
	if err != nil {
		return nil, err
	}

	rows, err := cdb.db.QueryContext(ctx, "SELECT record FROM "+table+" ORDER BY seq") //nolint:gosec // table name is a constant
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(record)))
		dec.UseNumber()
		var it model.Item
		if err := dec.Decode(&it); err != nil {
			return nil, fmt.Errorf("failed to parse %s record: %w", table, err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// Count returns the number of stored items in a partition.
func (cdb *CrawlDB) Count(ctx context.Context, p model.Partition) (int, error) {
	table, err := tableFor(p)
	if err != nil {
		return 0, err
	}

	var n int
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil { //nolint:gosec // table name is a constant
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
