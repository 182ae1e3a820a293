package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueLedger = (*LedgerRepo)(nil)

// LedgerRepo is the SQLite implementation of the IssueLedger port. The
// primary key on message_ref makes RecordIfAbsent a single atomic
// check-and-set: under concurrent inserts for the same ref exactly one row
// lands, and the loser reads back the winner's key.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new LedgerRepo backed by the given DB.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// RecordIfAbsent inserts the (messageRef, ticketKey) link unless one already
// exists for messageRef.
func (r *LedgerRepo) RecordIfAbsent(ctx context.Context, messageRef, ticketKey string, createdAt time.Time) (driven.RecordOutcome, error) {
	const insert = `
		INSERT INTO issue_links (message_ref, ticket_key, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(message_ref) DO NOTHING
	`
	res, err := r.db.Writer.ExecContext(ctx, insert, messageRef, ticketKey, createdAt.UTC().UnixNano())
	if err != nil {
		return driven.RecordOutcome{}, fmt.Errorf("record issue link %q: %w", messageRef, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return driven.RecordOutcome{}, fmt.Errorf("record issue link %q: rows affected: %w", messageRef, err)
	}
	if affected == 1 {
		return driven.RecordOutcome{Inserted: true, TicketKey: ticketKey}, nil
	}

	// Lost the insert race; the winner's row is immutable, so this read is safe.
	existing, err := r.Lookup(ctx, messageRef)
	if err != nil {
		return driven.RecordOutcome{}, fmt.Errorf("read back issue link %q: %w", messageRef, err)
	}
	return driven.RecordOutcome{Inserted: false, TicketKey: existing}, nil
}

// Lookup returns the ticket key recorded for messageRef.
func (r *LedgerRepo) Lookup(ctx context.Context, messageRef string) (string, error) {
	const query = `SELECT ticket_key FROM issue_links WHERE message_ref = ?`
	var ticketKey string
	err := r.db.Reader.QueryRowContext(ctx, query, messageRef).Scan(&ticketKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("issue link %q: %w", messageRef, driven.ErrLinkNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup issue link %q: %w", messageRef, err)
	}
	return ticketKey, nil
}
