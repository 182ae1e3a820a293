package driven

import (
	"context"
	"errors"

	"github.com/jirabridge/jirabridge/internal/domain/model"
)

// ErrIssueNotFound is returned by GetIssue when the tracker reports that the
// ticket does not exist.
var ErrIssueNotFound = errors.New("issue not found in tracker")

// TrackerClient defines the driven port for the external issue tracker.
// Every call authenticates with the credential passed in; the client holds
// no per-user state. Any other error returned from these methods must be
// treated as an outcome-unknown transient failure: the caller may retry with
// the same message ref and rely on the ledger for deduplication.
type TrackerClient interface {
	// CreateIssue creates a ticket and returns its key (e.g. "OPS-123").
	CreateIssue(ctx context.Context, credential string, req model.IssueRequest) (string, error)

	// GetIssue fetches the current status, summary and type of a ticket.
	// The returned TicketInfo has a zero UpdatedAt; the caller stamps the
	// observation time.
	GetIssue(ctx context.Context, credential, ticketKey string) (*model.TicketInfo, error)

	// IssueURL returns the human-facing URL for a ticket key.
	IssueURL(ticketKey string) string
}
