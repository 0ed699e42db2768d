// Package archive stores finished simulation runs in SQLite.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/telemetry"
)

// timeFormat keeps created_at lexically sortable.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a run ID is not in the archive.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// RunRecord is one archived run.
type RunRecord struct {
	ID              string  `db:"id" json:"id"`
	Seed            int64   `db:"seed" json:"-"`
	CreatedAt       string  `db:"created_at" json:"created_at"`
	Steps           int     `db:"steps" json:"steps"`
	FinalGini       float64 `db:"final_gini" json:"final_gini"`
	FinalPopulation int     `db:"final_population" json:"final_population"`
	ConfigJSON      string  `db:"config_json" json:"-"`
}

// RNGSeed returns the seed the run was started with.
func (r RunRecord) RNGSeed() uint64 {
	return uint64(r.Seed)
}

// Config decodes the stored run configuration.
func (r RunRecord) Config() (*config.Config, error) {
	var cfg config.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", r.ID, err)
	}
	return &cfg, nil
}

type bookmarkRow struct {
	Time        int    `db:"time"`
	Type        string `db:"type"`
	Description string `db:"description"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		steps INTEGER NOT NULL,
		final_gini REAL NOT NULL,
		final_population INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS step_reports (
		run_id TEXT NOT NULL,
		time INTEGER NOT NULL,
		population INTEGER NOT NULL,
		total_wealth REAL NOT NULL,
		gini_index REAL NOT NULL,
		state_collections REAL NOT NULL,
		total_tax REAL NOT NULL,
		report_json TEXT NOT NULL,
		PRIMARY KEY (run_id, time)
	);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		time INTEGER NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_bookmarks_run ON bookmarks(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores a finished run and returns its ID. A new UUID is assigned
// when the snapshot has none.
func (db *DB) SaveRun(snap *telemetry.Snapshot) (string, error) {
	id := snap.RunID
	if id == "" {
		id = uuid.NewString()
	}

	cfgJSON, err := json.Marshal(snap.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	var finalGini float64
	var finalPop int
	if last := snap.FinalReport(); last != nil {
		finalGini = last.GiniIndex
		finalPop = last.Population
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, seed, created_at, steps, final_gini, final_population, config_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, int64(snap.RNGSeed), time.Now().UTC().Format(timeFormat),
		len(snap.Reports), finalGini, finalPop, string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO step_reports
		(run_id, time, population, total_wealth, gini_index, state_collections, total_tax, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i := range snap.Reports {
		r := &snap.Reports[i]
		data, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encode report %d: %w", r.Time, err)
		}
		if _, err := stmt.Exec(id, r.Time, r.Population, r.TotalWealth, r.GiniIndex,
			r.StateCollections, r.TotalTax(), string(data)); err != nil {
			return "", fmt.Errorf("insert report %d: %w", r.Time, err)
		}
	}

	for _, b := range snap.Bookmarks {
		if _, err := tx.Exec(
			"INSERT INTO bookmarks (run_id, time, type, description) VALUES (?, ?, ?, ?)",
			id, b.Time, string(b.Type), b.Description,
		); err != nil {
			return "", fmt.Errorf("insert bookmark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run archived", "run_id", id, "steps", len(snap.Reports), "bookmarks", len(snap.Bookmarks))
	return id, nil
}

// GetRun returns the run record with the given ID.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	var run RunRecord
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	return runs, err
}

// StepReports returns the reports of a run in time order.
func (db *DB) StepReports(id string) ([]telemetry.StepReport, error) {
	var blobs []string
	if err := db.conn.Select(&blobs,
		"SELECT report_json FROM step_reports WHERE run_id = ? ORDER BY time", id,
	); err != nil {
		return nil, err
	}

	reports := make([]telemetry.StepReport, len(blobs))
	for i, b := range blobs {
		if err := json.Unmarshal([]byte(b), &reports[i]); err != nil {
			return nil, fmt.Errorf("decode report %d of run %s: %w", i, id, err)
		}
	}
	return reports, nil
}

// Bookmarks returns the bookmarks of a run in time order.
func (db *DB) Bookmarks(id string) ([]telemetry.Bookmark, error) {
	var rows []bookmarkRow
	if err := db.conn.Select(&rows,
		"SELECT time, type, description FROM bookmarks WHERE run_id = ? ORDER BY time, id", id,
	); err != nil {
		return nil, err
	}

	out := make([]telemetry.Bookmark, len(rows))
	for i, r := range rows {
		out[i] = telemetry.Bookmark{Type: telemetry.BookmarkType(r.Type), Time: r.Time, Description: r.Description}
	}
	return out, nil
}

// LoadSnapshot rebuilds the full snapshot of an archived run.
func (db *DB) LoadSnapshot(id string) (*telemetry.Snapshot, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	cfg, err := run.Config()
	if err != nil {
		return nil, err
	}
	reports, err := db.StepReports(id)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	bookmarks, err := db.Bookmarks(id)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}

	return &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		RunID:     run.ID,
		RNGSeed:   run.RNGSeed(),
		Config:    cfg,
		Reports:   reports,
		Bookmarks: bookmarks,
	}, nil
}
