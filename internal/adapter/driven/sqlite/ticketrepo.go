package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TicketStore = (*TicketRepo)(nil)

// TicketRepo is the SQLite implementation of the TicketStore port. The merge
// rule lives in the upsert's WHERE clause, so latest-write-wins holds under
// concurrent writers without any application-level locking: whichever
// observation carries the greatest updated_at is the one that remains,
// regardless of arrival order.
type TicketRepo struct {
	db *DB
}

// NewTicketRepo creates a new TicketRepo backed by the given DB.
func NewTicketRepo(db *DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// Upsert inserts or conditionally replaces the mirrored record for
// info.Key. An existing record with a newer or equal updated_at wins and the
// call is a no-op.
func (r *TicketRepo) Upsert(ctx context.Context, info model.TicketInfo) error {
	const query = `
		INSERT INTO tickets (ticket_key, status, summary, task_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticket_key) DO UPDATE SET
			status = excluded.status,
			summary = excluded.summary,
			task_type = excluded.task_type,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at > tickets.updated_at
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		info.Key, info.Status, info.Summary, info.TaskType, info.UpdatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert ticket %q: %w", info.Key, err)
	}
	return nil
}

// Get returns the current merged record for ticketKey.
func (r *TicketRepo) Get(ctx context.Context, ticketKey string) (*model.TicketInfo, error) {
	const query = `
		SELECT ticket_key, status, summary, task_type, updated_at
		FROM tickets
		WHERE ticket_key = ?
	`
	var info model.TicketInfo
	var updatedAt int64
	err := r.db.Reader.QueryRowContext(ctx, query, ticketKey).Scan(
		&info.Key, &info.Status, &info.Summary, &info.TaskType, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %q: %w", ticketKey, driven.ErrTicketNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %q: %w", ticketKey, err)
	}

	info.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &info, nil
}

// ListKeys returns all mirrored ticket keys ordered by key.
func (r *TicketRepo) ListKeys(ctx context.Context) ([]string, error) {
	const query = `SELECT ticket_key FROM tickets ORDER BY ticket_key`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ticket keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan ticket key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket keys: %w", err)
	}

	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
