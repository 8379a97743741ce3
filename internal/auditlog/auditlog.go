// Package auditlog writes a one-way, best-effort record of each signal's
// execution outcome to Postgres. It is never read from and never consulted
// by any routing or risk decision — the persistent trade/position database
// stays an external collaborator the core doesn't query (spec.md §1); this
// is just the core's own outbound decision trail.
package auditlog

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalrouter/kisrouter/internal/executor"
)

// Store implements executor.AuditSink against a Postgres connection pool,
// grounded on the teacher's internal/storage.PostgresStore constructor
// shape (connection string in, store out) — except this one actually
// issues queries instead of returning "not yet implemented".
type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// New connects to Postgres and ensures the audit_log table exists.
func New(ctx context.Context, connStr string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[auditlog] ", log.LstdFlags)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id              BIGSERIAL PRIMARY KEY,
			correlation_id  TEXT NOT NULL,
			account_id      TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			action          TEXT NOT NULL,
			signal_quantity INTEGER NOT NULL,
			order_id        TEXT,
			success         BOOLEAN NOT NULL,
			filled          BOOLEAN NOT NULL,
			error_type      TEXT,
			error_reason    TEXT,
			recorded_at     TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Record persists one execution outcome. Errors are logged, never
// propagated — a failing audit write must not fail the signal it's
// recording, matching the teacher's "logTradeAction never fatal" rule.
func (s *Store) Record(ctx context.Context, entry executor.AuditEntry) {
	var errType, errReason string
	if entry.Result.Error != nil {
		errType = string(entry.Result.Error.Type)
		errReason = entry.Result.Error.Reason
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(insertCtx, `
		INSERT INTO audit_log
			(correlation_id, account_id, symbol, action, signal_quantity,
			 order_id, success, filled, error_type, error_reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.CorrelationID,
		entry.AccountID,
		entry.Signal.Symbol,
		entry.Signal.Action,
		entry.Signal.Quantity,
		entry.Result.OrderID,
		entry.Result.Success,
		entry.Result.Filled,
		errType,
		errReason,
		entry.At,
	)
	if err != nil {
		s.logger.Printf("[auditlog] failed to record correlation_id=%s: %v", entry.CorrelationID, err)
	}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
