package model

import "time"

// TicketInfo is the locally mirrored view of a tracker ticket. UpdatedAt is
// the time the state was observed, not the tracker's own update time; the
// mirror keeps whichever observation carries the greatest UpdatedAt.
type TicketInfo struct {
	Key       string
	Status    string
	Summary   string
	TaskType  string
	UpdatedAt time.Time
}

// IssueRequest carries the fields sent to the tracker when creating a ticket.
type IssueRequest struct {
	Project     string
	Component   string
	IssueType   string
	Summary     string
	Description string
}
