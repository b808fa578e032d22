package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

var (
	//go:embed schema/sqlite.sql
	sqliteSchema string

	//go:embed schema/mysql.sql
	mysqlSchema string
)

const sqlInsert = `
INSERT INTO processes (
    id, project_id, session_id, requested_by,
    name, department, custom_department, time_spent_hours,
    repetitive_score, data_driven_score, rule_based_score,
    high_volume_score, impact_score, feasibility_score,
    notes, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// SQLStore creates records through database/sql. It serves the sqlite and
// mysql backends, which share placeholder syntax.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (or creates) the sqlite database at path.
func OpenSQLite(ctx context.Context, path string, ensureSchema bool) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer; an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, dialect: "sqlite"}
	if err := s.init(ctx, ensureSchema, sqliteSchema, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	logging.FromContext(ctx).Info("sqlite store opened", "path", path)
	return s, nil
}

// OpenMySQL connects with a go-sql-driver/mysql DSN. parseTime is forced on.
func OpenMySQL(ctx context.Context, dsn string, ensureSchema bool) (*SQLStore, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mcfg.ParseTime = true

	db, err := sql.Open("mysql", mcfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLStore{db: db, dialect: "mysql"}
	if err := s.init(ctx, ensureSchema, mysqlSchema); err != nil {
		db.Close()
		return nil, err
	}
	logging.FromContext(ctx).Info("mysql store connected", "addr", mcfg.Addr, "db", mcfg.DBName)
	return s, nil
}

func (s *SQLStore) init(ctx context.Context, ensureSchema bool, schema string, pragmas ...string) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if !ensureSchema {
		return nil
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", s.dialect, s.classify(err))
		}
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, rec core.ProcessRecord) (string, error) {
	row := newStoredRecord(ctx, rec)

	_, err := s.db.ExecContext(ctx, sqlInsert,
		row.ID,
		row.ProjectID,
		row.SessionID,
		nullString(row.RequestedBy),
		row.Name,
		nullString(row.Department),
		nullString(row.CustomDepartment),
		row.TimeSpentHours,
		nullScore(row.Repetitive),
		nullScore(row.DataDriven),
		nullScore(row.RuleBased),
		nullScore(row.HighVolume),
		nullScore(row.Impact),
		nullScore(row.Feasibility),
		nullString(row.Notes),
		row.CreatedAt,
	)
	if err != nil {
		return "", s.classify(err)
	}
	return row.ID, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM processes").Scan(&n); err != nil {
		return 0, s.classify(err)
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return networkError("ping "+s.dialect, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// classify wraps connection-level failures with core.ErrNetwork and gives
// duplicate-key rejections a recognizable message.
func (s *SQLStore) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return networkError(s.dialect, err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("duplicate key: %w", err)
	}
	return err
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullScore(v int) sql.NullInt16 {
	if v < core.MinScore || v > core.MaxScore {
		return sql.NullInt16{}
	}
	return sql.NullInt16{Int16: int16(v), Valid: true}
}
