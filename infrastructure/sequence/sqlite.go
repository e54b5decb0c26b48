package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lb-conn/nfse-dps/domain/dps"
)

// SQLite keeps counters in a single local file. Writers are serialized by
// immediate transactions, so several processes may share the file.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string, log *slog.Logger) (*SQLite, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS dps_sequence (
			series     INTEGER PRIMARY KEY CHECK (series BETWEEN 0 AND 99999),
			last       INTEGER NOT NULL CHECK (last >= 0),
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ReserveNext(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO dps_sequence (series, last) VALUES (?, 1)
		ON CONFLICT (series) DO UPDATE
			SET last = last + 1, updated_at = CURRENT_TIMESTAMP
			WHERE last < ?
		RETURNING last
	`
	var next int64
	err := s.db.QueryRowContext(ctx, query, series, int64(dps.MaxNumber)).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("series %d: %w", series, ErrSequenceExhausted)
	}
	if err != nil {
		s.log.Error("Failed to reserve dps number", "series", series, "error", err)
		return 0, fmt.Errorf("reserve dps number: %w", err)
	}

	s.log.Debug("dps number reserved", "series", series, "sequence", next)
	return next, nil
}

// Seed raises the counter of series to last. Lower values are ignored.
func (s *SQLite) Seed(ctx context.Context, series int, last int64) error {
	if err := checkSeed(series, last); err != nil {
		return err
	}
	query := `
		INSERT INTO dps_sequence (series, last) VALUES (?, ?)
		ON CONFLICT (series) DO UPDATE
			SET last = MAX(last, excluded.last), updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, series, last); err != nil {
		return fmt.Errorf("seed dps sequence: %w", err)
	}
	return nil
}

func (s *SQLite) Last(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT last FROM dps_sequence WHERE series = ?`, series).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dps sequence: %w", err)
	}
	return last, nil
}

var _ Reservoir = (*SQLite)(nil)
