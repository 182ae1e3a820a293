package driven

import (
	"context"
	"errors"
	"time"
)

// ErrLinkNotFound is returned by Lookup when no ticket has been recorded for
// the message ref.
var ErrLinkNotFound = errors.New("no ticket recorded for message ref")

// RecordOutcome reports the result of a conditional ledger insert. When
// Inserted is false the insert lost to an earlier record and TicketKey holds
// the previously recorded key, not the one passed in.
type RecordOutcome struct {
	Inserted  bool
	TicketKey string
}

// IssueLedger defines the driven port for the message-ref deduplication
// ledger. RecordIfAbsent is the single atomic arbiter of the at-most-one-
// creation guarantee: the uniqueness of messageRef must be enforced by the
// backing store in one operation, never as separate read-then-write steps.
type IssueLedger interface {
	// RecordIfAbsent inserts (messageRef, ticketKey) unless a record for
	// messageRef already exists, in which case it returns the existing key
	// with Inserted=false. Records are immutable once written.
	RecordIfAbsent(ctx context.Context, messageRef, ticketKey string, createdAt time.Time) (RecordOutcome, error)

	// Lookup returns the ticket key recorded for messageRef, or
	// ErrLinkNotFound.
	Lookup(ctx context.Context, messageRef string) (string, error)
}
