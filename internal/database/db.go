package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dadchain/internal/chain"
	"dadchain/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDuplicateRecord = errors.New("transaction already recorded")
)

type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// TransactionRepository is the durable transaction log. Args are stored as
// raw bytes so a replayed record hashes exactly as it did on submit.
type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Commit(ctx context.Context, rec *chain.Record) error {
	return r.Append(ctx, rec)
}

func (r *TransactionRepository) Append(ctx context.Context, rec *chain.Record) error {
	query := `
		INSERT INTO transactions (seq, hash, sender, method, args, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		int64(rec.Seq), rec.Hash.Bytes(), rec.From.Bytes(), rec.Method, []byte(rec.Args), rec.Time,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: seq %d", ErrDuplicateRecord, rec.Seq)
		}
		return fmt.Errorf("failed to append transaction %d: %w", rec.Seq, err)
	}
	return nil
}

// Each streams records in sequence order, stopping at the first error.
func (r *TransactionRepository) Each(ctx context.Context, fn func(*chain.Record) error) error {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT seq, hash, sender, method, args, executed_at
		FROM transactions
		ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq        int64
			hash, from []byte
			method     string
			args       []byte
			executedAt time.Time
		)
		if err := rows.Scan(&seq, &hash, &from, &method, &args, &executedAt); err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}

		rec := &chain.Record{
			Seq:    uint64(seq),
			Hash:   common.BytesToHash(hash),
			From:   common.BytesToAddress(from),
			Method: method,
			Args:   args,
			Time:   executedAt.UTC(),
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *TransactionRepository) Count(ctx context.Context) (uint64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	return uint64(count), err
}
