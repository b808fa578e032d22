package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

const postgresInsert = `
INSERT INTO processes (
    id, project_id, session_id, requested_by,
    name, department, custom_department, time_spent_hours,
    repetitive_score, data_driven_score, rule_based_score,
    high_volume_score, impact_score, feasibility_score,
    notes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id`

// PostgresStore creates records through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres builds a pool from cfg, verifies connectivity and, when
// cfg.EnsureSchema is set, creates the processes table.
func OpenPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.EnsureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logging.FromContext(ctx).Info("postgres store connected",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return s, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the processes table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec core.ProcessRecord) (string, error) {
	row := newStoredRecord(ctx, rec)

	var id string
	err := s.pool.QueryRow(ctx, postgresInsert,
		row.ID,
		row.ProjectID,
		row.SessionID,
		ToPgText(row.RequestedBy),
		row.Name,
		ToPgText(row.Department),
		ToPgText(row.CustomDepartment),
		ToPgNumeric(row.TimeSpentHours),
		ToPgScore(row.Repetitive),
		ToPgScore(row.DataDriven),
		ToPgScore(row.RuleBased),
		ToPgScore(row.HighVolume),
		ToPgScore(row.Impact),
		ToPgScore(row.Feasibility),
		ToPgText(row.Notes),
		pgtype.Timestamptz{Time: row.CreatedAt, Valid: true},
	).Scan(&id)
	if err != nil {
		return "", classifyPgError(err)
	}
	return id, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return networkError("ping postgres", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// classifyPgError wraps connection-level failures with core.ErrNetwork.
// Errors reported by the server itself stay row-level.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return networkError("postgres", err)
	}
	return err
}

/* ----------------------------------------
	Pgx Helpers
---------------------------------------- */

// ToPgText maps blank strings to NULL.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgNumeric converts hours to a NUMERIC value.
func ToPgNumeric(f float64) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(f, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgScore maps an unset score (zero) to NULL.
func ToPgScore(v int) pgtype.Int2 {
	if v < core.MinScore || v > core.MaxScore {
		return pgtype.Int2{Valid: false}
	}
	return pgtype.Int2{Int16: int16(v), Valid: true}
}
