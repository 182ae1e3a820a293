package model

import "time"

// IssueLink records that an inbound message produced a ticket. MessageRef is
// the transport-supplied identifier of the logical command; the row is
// immutable once written and is what makes replayed commands idempotent.
type IssueLink struct {
	MessageRef string
	TicketKey  string
	CreatedAt  time.Time
}
