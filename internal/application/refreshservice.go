package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// RefreshService periodically re-reads every mirrored ticket from the
// tracker with a service credential and upserts the result, so ticket state
// converges even when nobody asks for it. Inactive when no service
// credential is configured.
type RefreshService struct {
	tickets    driven.TicketStore
	tracker    driven.TrackerClient
	credential string
	interval   time.Duration
	now        func() time.Time
}

// NewRefreshService creates a RefreshService. credential may be empty, in
// which case Start logs and returns immediately.
func NewRefreshService(tickets driven.TicketStore, tracker driven.TrackerClient, credential string, interval time.Duration) *RefreshService {
	return &RefreshService{
		tickets:    tickets,
		tracker:    tracker,
		credential: credential,
		interval:   interval,
		now:        time.Now,
	}
}

// Start runs an immediate refresh, then refreshes on the configured
// interval. It blocks until the context is canceled.
func (s *RefreshService) Start(ctx context.Context) {
	if s.credential == "" {
		slog.Info("mirror refresh inactive: no service credential configured")
		return
	}

	if err := s.refreshAll(ctx); err != nil {
		slog.Error("initial mirror refresh failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh service stopped")
			return
		case <-ticker.C:
			if err := s.refreshAll(ctx); err != nil {
				slog.Error("mirror refresh failed", "error", err)
			}
		}
	}
}

// refreshAll walks the mirrored keys once. Per-ticket fetch failures are
// logged and skipped so one bad ticket cannot starve the rest.
func (s *RefreshService) refreshAll(ctx context.Context) error {
	keys, err := s.tickets.ListKeys(ctx)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, key := range keys {
		info, err := s.fetchWithRetry(ctx, key)
		if errors.Is(err, driven.ErrIssueNotFound) {
			// Deleted on the tracker side; the mirror keeps the last known
			// state (records are never deleted locally).
			slog.Warn("mirrored ticket gone from tracker", "ticket", key)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("refresh fetch failed", "ticket", key, "error", err)
			continue
		}

		info.UpdatedAt = s.now()
		if err := s.tickets.Upsert(ctx, *info); err != nil {
			return err
		}
		refreshed++
	}

	slog.Info("mirror refresh complete", "tickets", len(keys), "refreshed", refreshed)
	return nil
}

func (s *RefreshService) fetchWithRetry(ctx context.Context, key string) (*model.TicketInfo, error) {
	var info *model.TicketInfo
	op := func() error {
		var err error
		info, err = s.tracker.GetIssue(ctx, s.credential, key)
		if errors.Is(err, driven.ErrIssueNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return info, nil
}
