// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// ErrUnauthorized is returned when the caller is not on the allowlist.
var ErrUnauthorized = errors.New("user is not authorized to create tickets")

// ErrCredentialMissing is returned when the caller has no stored tracker
// credential. It is actionable: the user must register one first.
var ErrCredentialMissing = errors.New("no tracker credential stored")

// ErrEmptySummary is returned when the command carries no task summary.
var ErrEmptySummary = errors.New("task summary is empty")

// TicketRequest is one inbound creation command. MessageRef is the
// transport's unique identifier for the logical command and may be
// redelivered verbatim; the service deduplicates on it.
type TicketRequest struct {
	MessageRef  string
	Username    string
	UserID      int64
	Summary     string
	Description string
	Component   string
	IssueType   string
}

// TicketResult is the outcome of a creation command. Existing is true when
// the ledger already held a ticket for the message ref and no external call
// was made.
type TicketResult struct {
	TicketKey string
	URL       string
	Existing  bool
}

// CreateService orchestrates idempotent ticket creation: allowlist check,
// ledger pre-check, credential load, external create, ledger record, mirror
// update. The ledger's conditional insert is the only atomic step; the
// external call deliberately happens outside any lock, trading an occasional
// orphan ticket under a redelivery race for never blocking other commands
// on a network call.
type CreateService struct {
	gate    *Allowlist
	vault   driven.CredentialStore
	ledger  driven.IssueLedger
	tickets driven.TicketStore
	tracker driven.TrackerClient
	project string
	now     func() time.Time
}

// NewCreateService creates a CreateService with all required dependencies.
// project is the tracker project key that all tickets are created in.
func NewCreateService(
	gate *Allowlist,
	vault driven.CredentialStore,
	ledger driven.IssueLedger,
	tickets driven.TicketStore,
	tracker driven.TrackerClient,
	project string,
) *CreateService {
	return &CreateService{
		gate:    gate,
		vault:   vault,
		ledger:  ledger,
		tickets: tickets,
		tracker: tracker,
		project: project,
		now:     time.Now,
	}
}

// Create turns one inbound command into at most one external ticket.
// Calling it again with the same MessageRef returns the same ticket key and
// performs no second external creation.
func (s *CreateService) Create(ctx context.Context, req TicketRequest) (*TicketResult, error) {
	if !s.gate.Allowed(req.Username, req.UserID) {
		slog.Warn("unauthorized creation attempt", "username", req.Username, "user_id", req.UserID)
		return nil, fmt.Errorf("user %q (id %d): %w", req.Username, req.UserID, ErrUnauthorized)
	}
	if strings.TrimSpace(req.Summary) == "" {
		return nil, ErrEmptySummary
	}

	// Idempotent short-circuit: a redelivered command returns the ticket its
	// first delivery created, with no external call.
	key, err := s.ledger.Lookup(ctx, req.MessageRef)
	if err == nil {
		slog.Info("redelivered command short-circuited", "message_ref", req.MessageRef, "ticket", key)
		return &TicketResult{TicketKey: key, URL: s.tracker.IssueURL(key), Existing: true}, nil
	}
	if !errors.Is(err, driven.ErrLinkNotFound) {
		return nil, err
	}

	credential, err := s.vault.Get(ctx, strconv.FormatInt(req.UserID, 10))
	if errors.Is(err, driven.ErrCredentialNotFound) {
		return nil, fmt.Errorf("user %q (id %d): %w", req.Username, req.UserID, ErrCredentialMissing)
	}
	if err != nil {
		// Includes ErrDecryptFailed: never proceed on a credential that
		// failed authentication.
		return nil, err
	}

	key, err = s.tracker.CreateIssue(ctx, credential, model.IssueRequest{
		Project:     s.project,
		Component:   req.Component,
		IssueType:   req.IssueType,
		Summary:     req.Summary,
		Description: s.description(req),
	})
	if err != nil {
		// Outcome unknown, nothing recorded: the caller may retry with the
		// same message ref and the ledger pre-check covers the case where
		// the creation actually went through on a later delivery.
		return nil, fmt.Errorf("external ticket creation: %w", err)
	}

	outcome, err := s.ledger.RecordIfAbsent(ctx, req.MessageRef, key, s.now())
	if err != nil {
		return nil, fmt.Errorf("record ticket %s for %q: %w", key, req.MessageRef, err)
	}
	if !outcome.Inserted && outcome.TicketKey != key {
		// Lost the creation race for this ref: another handler recorded
		// first. The ticket created here is an orphan left for out-of-band
		// reconciliation; the caller gets the recorded key.
		slog.Warn("duplicate external ticket created",
			"message_ref", req.MessageRef, "recorded", outcome.TicketKey, "orphan", key)
		key = outcome.TicketKey
	}

	if err := s.tickets.Upsert(ctx, model.TicketInfo{
		Key:       key,
		Status:    "Open",
		Summary:   req.Summary,
		TaskType:  req.IssueType,
		UpdatedAt: s.now(),
	}); err != nil {
		// The ticket exists and is recorded; a stale mirror heals on the
		// next refresh, so the creation still succeeds.
		slog.Warn("mirror update failed", "ticket", key, "error", err)
	}

	slog.Info("ticket created", "ticket", key, "message_ref", req.MessageRef, "user_id", req.UserID)
	return &TicketResult{TicketKey: key, URL: s.tracker.IssueURL(key)}, nil
}

func (s *CreateService) description(req TicketRequest) string {
	if req.Description != "" {
		return req.Description
	}
	name := req.Username
	if name == "" {
		name = strconv.FormatInt(req.UserID, 10)
	}
	return "Created via chat bridge by " + name
}
