package driven

import (
	"context"
	"errors"

	"github.com/jirabridge/jirabridge/internal/domain/model"
)

// ErrTicketNotCached is returned by Get when the mirror holds no record for
// the ticket key.
var ErrTicketNotCached = errors.New("ticket not cached")

// TicketStore defines the driven port for the local ticket metadata mirror.
// Upserts merge latest-write-wins on UpdatedAt, so concurrent writers
// converge on the observation with the greatest timestamp regardless of
// arrival order.
type TicketStore interface {
	// Upsert stores info unless the existing record carries a newer or equal
	// UpdatedAt, in which case the call is a no-op.
	Upsert(ctx context.Context, info model.TicketInfo) error

	// Get returns the current merged record for ticketKey, or
	// ErrTicketNotCached.
	Get(ctx context.Context, ticketKey string) (*model.TicketInfo, error)

	// ListKeys returns all mirrored ticket keys, ordered by key.
	ListKeys(ctx context.Context) ([]string, error)
}
