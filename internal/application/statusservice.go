package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// StatusService answers ticket status lookups from the local mirror,
// falling back to the tracker (with the requester's credential) on a miss
// and feeding what it learns back into the mirror.
type StatusService struct {
	vault   driven.CredentialStore
	tickets driven.TicketStore
	tracker driven.TrackerClient
	now     func() time.Time
}

// NewStatusService creates a StatusService.
func NewStatusService(vault driven.CredentialStore, tickets driven.TicketStore, tracker driven.TrackerClient) *StatusService {
	return &StatusService{vault: vault, tickets: tickets, tracker: tracker, now: time.Now}
}

// Status returns the current known state of a ticket. Mirror hits cost no
// external call.
func (s *StatusService) Status(ctx context.Context, userID int64, ticketKey string) (*model.TicketInfo, error) {
	info, err := s.tickets.Get(ctx, ticketKey)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, driven.ErrTicketNotCached) {
		return nil, err
	}

	credential, err := s.vault.Get(ctx, strconv.FormatInt(userID, 10))
	if errors.Is(err, driven.ErrCredentialNotFound) {
		return nil, fmt.Errorf("user id %d: %w", userID, ErrCredentialMissing)
	}
	if err != nil {
		return nil, err
	}

	fetched, err := s.tracker.GetIssue(ctx, credential, ticketKey)
	if err != nil {
		return nil, err
	}
	fetched.UpdatedAt = s.now()

	if err := s.tickets.Upsert(ctx, *fetched); err != nil {
		slog.Warn("mirror update failed", "ticket", ticketKey, "error", err)
	}
	return fetched, nil
}
