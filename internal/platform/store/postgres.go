package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hms/hms/internal/platform/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps each key as a row of hms_records (see
// migrations/001_records.sql). Inside Atomic, reads take a row lock.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Get(ctx context.Context, key string) (Record, error) {
	q := `SELECT payload, version, updated_at FROM hms_records WHERE record_key = $1`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}

	rec := Record{Key: key}
	var payload []byte
	err := db.Conn(ctx, p.pool).QueryRow(ctx, q, key).Scan(&payload, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{Key: key}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", key, err)
	}
	rec.Data = json.RawMessage(payload)
	return rec, nil
}

func (p *Postgres) Put(ctx context.Context, key string, data json.RawMessage, expectVersion int64) (int64, error) {
	conn := db.Conn(ctx, p.pool)
	if expectVersion == 0 {
		tag, err := conn.Exec(ctx,
			`INSERT INTO hms_records (record_key, payload, version, updated_at)
			 VALUES ($1, $2, 1, NOW()) ON CONFLICT (record_key) DO NOTHING`,
			key, []byte(data))
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, fmt.Errorf("%w: %s already exists", ErrVersionConflict, key)
		}
		return 1, nil
	}

	tag, err := conn.Exec(ctx,
		`UPDATE hms_records SET payload = $2, version = version + 1, updated_at = NOW()
		 WHERE record_key = $1 AND version = $3`,
		key, []byte(data), expectVersion)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%w: %s is no longer at version %d", ErrVersionConflict, key, expectVersion)
	}
	return expectVersion + 1, nil
}

func (p *Postgres) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, p.pool, fn)
}

func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `SELECT record_key FROM hms_records ORDER BY record_key`)
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

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
