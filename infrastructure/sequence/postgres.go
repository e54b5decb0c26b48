package sequence

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lb-conn/nfse-dps/domain/dps"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewPool creates a PostgreSQL connection pool and checks connectivity.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Postgres reserves numbers with a single upsert per call; the row lock taken
// by the update serializes concurrent emitters.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{pool: pool, log: log}
}

// Migrate executes the embedded migrations in order. They are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	migrations := []string{
		"migrations/001_create_dps_sequence.sql",
	}

	for _, migration := range migrations {
		p.log.Info("Running migration", "file", migration)

		sqlBytes, err := migrationsFS.ReadFile(migration)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", migration, err)
		}
		if _, err := p.pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", migration, err)
		}

		p.log.Info("Migration completed", "file", migration)
	}
	return nil
}

func (p *Postgres) ReserveNext(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}

	// Sem linha retornada: a série já está no limite.
	query := `
		INSERT INTO dps_sequence (series, last) VALUES ($1, 1)
		ON CONFLICT (series) DO UPDATE
			SET last = dps_sequence.last + 1, updated_at = now()
			WHERE dps_sequence.last < $2
		RETURNING last
	`
	var next int64
	err := p.pool.QueryRow(ctx, query, series, int64(dps.MaxNumber)).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("series %d: %w", series, ErrSequenceExhausted)
	}
	if err != nil {
		p.log.Error("Failed to reserve dps number", "series", series, "error", err)
		return 0, fmt.Errorf("reserve dps number: %w", err)
	}

	p.log.Debug("dps number reserved", "series", series, "sequence", next)
	return next, nil
}

// Seed raises the counter of series to last. Lower values are ignored.
func (p *Postgres) Seed(ctx context.Context, series int, last int64) error {
	if err := checkSeed(series, last); err != nil {
		return err
	}
	query := `
		INSERT INTO dps_sequence (series, last) VALUES ($1, $2)
		ON CONFLICT (series) DO UPDATE
			SET last = GREATEST(dps_sequence.last, EXCLUDED.last), updated_at = now()
	`
	if _, err := p.pool.Exec(ctx, query, series, last); err != nil {
		return fmt.Errorf("seed dps sequence: %w", err)
	}
	p.log.Info("dps sequence seeded", "series", series, "last", last)
	return nil
}

func (p *Postgres) Last(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}
	var last int64
	err := p.pool.QueryRow(ctx, `SELECT last FROM dps_sequence WHERE series = $1`, series).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dps sequence: %w", err)
	}
	return last, nil
}

var _ Reservoir = (*Postgres)(nil)
