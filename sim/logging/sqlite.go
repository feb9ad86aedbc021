package logging

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// sqliteBatch is the number of rows written per transaction.
const sqliteBatch = 10000

const (
	insertChangeSQL = `INSERT INTO state_changes (time, row, col, state, aux, kind) VALUES (?, ?, ?, ?, ?, ?)`
	insertCensusSQL = `INSERT INTO census (time, state, count, avg_lifetime) VALUES (?, ?, ?, ?)`
)

// SQLiteLogger stores a run in a SQLite database: run metadata, the site
// states of a spatial model (initial states with kind "initial", then one
// row per event) and the census every interval.
//
// It is both an event and a periodic logger; register it as both. Start and
// end are handled once.
type SQLiteLogger struct {
	db    *sql.DB
	tx    *sql.Tx
	stmts struct{ change, census *sql.Stmt }

	interval float64
	ticks    int
	next     float64
	pending  int
	names    []string

	started, ended bool
}

var (
	_ sim.EventLogger    = (*SQLiteLogger)(nil)
	_ sim.PeriodicLogger = (*SQLiteLogger)(nil)
)

// OpenSQLite creates or opens the database at path, replaces any tables a
// previous run left there and records meta in the meta table.
func OpenSQLite(path string, interval float64, meta map[string]string) (*SQLiteLogger, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if _, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, meta[k]); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	return &SQLiteLogger{db: db, interval: interval}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"DROP TABLE IF EXISTS meta;",
		"DROP TABLE IF EXISTS state_changes;",
		"DROP TABLE IF EXISTS census;",
		`CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE state_changes (
			time REAL NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			state TEXT NOT NULL,
			aux REAL NOT NULL,
			kind TEXT NOT NULL
		);`,
		`CREATE INDEX idx_state_changes_site ON state_changes(row, col, time);`,
		`CREATE TABLE census (
			time REAL NOT NULL,
			state TEXT NOT NULL,
			count INTEGER NOT NULL,
			avg_lifetime REAL,
			PRIMARY KEY (time, state)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (l *SQLiteLogger) begin() error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	change, err := tx.Prepare(insertChangeSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	census, err := tx.Prepare(insertCensusSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	l.tx = tx
	l.stmts.change, l.stmts.census = change, census
	l.pending = 0
	return nil
}

func (l *SQLiteLogger) commit() error {
	if l.tx == nil {
		return nil
	}
	err := l.tx.Commit()
	l.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// wrote counts one row and rolls the transaction over when the batch is full.
func (l *SQLiteLogger) wrote() error {
	l.pending++
	if l.pending < sqliteBatch {
		return nil
	}
	if err := l.commit(); err != nil {
		return err
	}
	return l.begin()
}

func (l *SQLiteLogger) LogStart(m sim.Model) error {
	if l.started {
		return nil
	}
	l.started = true
	src, err := censusOf(m)
	if err != nil {
		return err
	}
	l.names = src.StateNames()
	if err := l.begin(); err != nil {
		return err
	}
	g, _, err := gridOf(m)
	if err != nil {
		logrus.Debugf("SQLite logger: %v; state_changes stays empty", err)
		return nil
	}
	for _, site := range g.Sites() {
		if err := l.insertChange(0, site, "initial"); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLiteLogger) insertChange(t float64, site *model.Site, kind string) error {
	if _, err := l.stmts.change.Exec(t, site.Row, site.Col, l.names[site.State], site.Aux, kind); err != nil {
		return fmt.Errorf("insert state change: %w", err)
	}
	return l.wrote()
}

func (l *SQLiteLogger) LogEvent(_ sim.Model, t float64, e sim.Event) error {
	o, ok := e.(model.Owned)
	if !ok {
		return nil
	}
	return l.insertChange(t, o.Owner(), sim.EventLabel(e))
}

func (l *SQLiteLogger) NextLogTime(sim.Model) float64 { return l.next }

func (l *SQLiteLogger) LogPeriodic(m sim.Model, t float64) error {
	src, err := censusOf(m)
	if err != nil {
		return err
	}
	c := src.Census()
	for s, name := range l.names {
		life := c.AvgLifetime(model.State(s), t)
		lifetime := sql.NullFloat64{Float64: life, Valid: !math.IsNaN(life)}
		if _, err := l.stmts.census.Exec(t, name, c.Count(model.State(s)), lifetime); err != nil {
			return fmt.Errorf("insert census: %w", err)
		}
		if err := l.wrote(); err != nil {
			return err
		}
	}
	l.ticks++
	l.next = float64(l.ticks) * l.interval
	return nil
}

func (l *SQLiteLogger) LogEnd(sim.Model) error { return l.Close() }

// Close commits pending rows and closes the database. Later calls, including
// LogEnd, are no-ops.
func (l *SQLiteLogger) Close() error {
	if l.ended {
		return nil
	}
	l.ended = true
	return errors.Join(l.commit(), l.db.Close())
}
