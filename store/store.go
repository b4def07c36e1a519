// Package store persists the ecosystem's durable state in SQLite:
// snapshots of the fee rule list (order preserved), accumulator buckets,
// staking positions and pool accumulators, plus append-only event tables
// for reflections, swaps and staking activity.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed snapshot and event store. One mutex guards
// the connection; WAL mode keeps concurrent readers cheap.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger replaces the default nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info("store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fee_entries (
			position      INTEGER PRIMARY KEY,
			id            TEXT NOT NULL,
			from_addr     TEXT NOT NULL,
			to_addr       TEXT NOT NULL,
			percentage    TEXT NOT NULL,
			destination   TEXT NOT NULL,
			do_callback   INTEGER NOT NULL,
			do_liquify    INTEGER NOT NULL,
			do_swap       INTEGER NOT NULL,
			action_amount TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fee_amounts (
			id     TEXT PRIMARY KEY,
			amount TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS staking_positions (
			id             INTEGER PRIMARY KEY,
			owner          TEXT NOT NULL,
			amount         TEXT NOT NULL,
			duration_days  INTEGER NOT NULL,
			shares         TEXT NOT NULL,
			reward_debt    TEXT NOT NULL,
			claimed        TEXT NOT NULL,
			last_claimed   INTEGER NOT NULL,
			created        INTEGER NOT NULL,
			auto_compound  INTEGER NOT NULL,
			unstaked       INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS pool_state (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			allocated_shares TEXT NOT NULL,
			total_staked     TEXT NOT NULL,
			acc_reward       TEXT NOT NULL,
			last_reward      INTEGER NOT NULL,
			next_position    INTEGER NOT NULL,
			paused           INTEGER NOT NULL,
			emergency        INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fee_reflections (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			id          TEXT NOT NULL,
			from_addr   TEXT NOT NULL,
			to_addr     TEXT NOT NULL,
			destination TEXT NOT NULL,
			amount      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reflections_ts ON fee_reflections(timestamp)`,

		`CREATE TABLE IF NOT EXISTS swap_liquifies (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			id            TEXT NOT NULL,
			swapped_token TEXT NOT NULL,
			native        TEXT NOT NULL,
			added_token   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS swap_stables (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			id          TEXT NOT NULL,
			amount_in   TEXT NOT NULL,
			stable_out  TEXT NOT NULL,
			destination TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS callback_failures (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			id          TEXT NOT NULL,
			destination TEXT NOT NULL,
			reason      TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS stakes (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			position_id   INTEGER NOT NULL,
			owner         TEXT NOT NULL,
			amount        TEXT NOT NULL,
			duration_days INTEGER NOT NULL,
			shares        TEXT NOT NULL,
			auto_compound INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS rewards (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			position_id INTEGER NOT NULL,
			owner       TEXT NOT NULL,
			kind        TEXT NOT NULL,
			amount      TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
