package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

const mysqlSchema = `CREATE TABLE IF NOT EXISTS hms_records (
    record_key VARCHAR(128) NOT NULL PRIMARY KEY,
    payload LONGTEXT NOT NULL,
    version BIGINT NOT NULL,
    updated_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQL keeps records in an InnoDB table with the same shape as the
// postgres backend.
type MySQL struct {
	db *sql.DB
}

type mysqlTxKey struct{}

// OpenMySQL connects with dsn and forces parseTime so DATETIME columns scan
// into time.Time.
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &MySQL{db: conn}, nil
}

// EnsureSchema creates the records table when missing.
func (m *MySQL) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mysqlSchema); err != nil {
		return fmt.Errorf("create hms_records: %w", err)
	}
	return nil
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQL) conn(ctx context.Context) sqlQuerier {
	if tx, ok := ctx.Value(mysqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return m.db
}

func (m *MySQL) Get(ctx context.Context, key string) (Record, error) {
	q := `SELECT payload, version, updated_at FROM hms_records WHERE record_key = ?`
	if _, ok := ctx.Value(mysqlTxKey{}).(*sql.Tx); ok {
		q += ` FOR UPDATE`
	}

	rec := Record{Key: key}
	var payload string
	err := m.conn(ctx).QueryRowContext(ctx, q, key).Scan(&payload, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{Key: key}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", key, err)
	}
	rec.Data = json.RawMessage(payload)
	return rec, nil
}

func (m *MySQL) Put(ctx context.Context, key string, data json.RawMessage, expectVersion int64) (int64, error) {
	now := time.Now().UTC()
	if expectVersion == 0 {
		_, err := m.conn(ctx).ExecContext(ctx,
			`INSERT INTO hms_records (record_key, payload, version, updated_at) VALUES (?, ?, 1, ?)`,
			key, string(data), now)
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return 0, fmt.Errorf("%w: %s already exists", ErrVersionConflict, key)
		}
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", key, err)
		}
		return 1, nil
	}

	res, err := m.conn(ctx).ExecContext(ctx,
		`UPDATE hms_records SET payload = ?, version = version + 1, updated_at = ?
		 WHERE record_key = ? AND version = ?`,
		string(data), now, key, expectVersion)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", key, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s is no longer at version %d", ErrVersionConflict, key, expectVersion)
	}
	return expectVersion + 1, nil
}

func (m *MySQL) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(mysqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, mysqlTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (m *MySQL) Keys(ctx context.Context) ([]string, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `SELECT record_key FROM hms_records ORDER BY record_key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (m *MySQL) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
