package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirabridge/jirabridge/internal/application"
	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockVault struct {
	mu      sync.Mutex
	secrets map[string]string
	getErr  error
	gets    int
}

func (m *mockVault) Set(_ context.Context, owner, _, plaintext string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = map[string]string{}
	}
	m.secrets[owner] = plaintext
	return nil
}

func (m *mockVault) Get(_ context.Context, owner string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return "", m.getErr
	}
	secret, ok := m.secrets[owner]
	if !ok {
		return "", driven.ErrCredentialNotFound
	}
	return secret, nil
}

type mockLedger struct {
	mu      sync.Mutex
	links   map[string]string
	lookups int
	records int
}

func (m *mockLedger) RecordIfAbsent(_ context.Context, messageRef, ticketKey string, _ time.Time) (driven.RecordOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records++
	if m.links == nil {
		m.links = map[string]string{}
	}
	if existing, ok := m.links[messageRef]; ok {
		return driven.RecordOutcome{Inserted: false, TicketKey: existing}, nil
	}
	m.links[messageRef] = ticketKey
	return driven.RecordOutcome{Inserted: true, TicketKey: ticketKey}, nil
}

func (m *mockLedger) Lookup(_ context.Context, messageRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	key, ok := m.links[messageRef]
	if !ok {
		return "", driven.ErrLinkNotFound
	}
	return key, nil
}

type mockTicketStore struct {
	mu      sync.Mutex
	upserts []model.TicketInfo
	stored  map[string]model.TicketInfo
}

func (m *mockTicketStore) Upsert(_ context.Context, info model.TicketInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, info)
	if m.stored == nil {
		m.stored = map[string]model.TicketInfo{}
	}
	if existing, ok := m.stored[info.Key]; !ok || info.UpdatedAt.After(existing.UpdatedAt) {
		m.stored[info.Key] = info
	}
	return nil
}

func (m *mockTicketStore) Get(_ context.Context, ticketKey string) (*model.TicketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.stored[ticketKey]
	if !ok {
		return nil, driven.ErrTicketNotCached
	}
	return &info, nil
}

func (m *mockTicketStore) ListKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k := range m.stored {
		keys = append(keys, k)
	}
	return keys, nil
}

type mockTracker struct {
	mu        sync.Mutex
	creates   int
	createErr error
	nextKey   func(n int) string
	issues    map[string]model.TicketInfo
}

func (m *mockTracker) CreateIssue(_ context.Context, _ string, _ model.IssueRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.creates++
	if m.nextKey != nil {
		return m.nextKey(m.creates), nil
	}
	return fmt.Sprintf("OPS-%d", m.creates), nil
}

func (m *mockTracker) GetIssue(_ context.Context, _ string, ticketKey string) (*model.TicketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.issues[ticketKey]
	if !ok {
		return nil, driven.ErrIssueNotFound
	}
	return &info, nil
}

func (m *mockTracker) IssueURL(ticketKey string) string {
	return "https://jira.example.com/browse/" + ticketKey
}

func newCreateService(gate *application.Allowlist, vault *mockVault, ledger *mockLedger, tickets *mockTicketStore, tracker *mockTracker) *application.CreateService {
	return application.NewCreateService(gate, vault, ledger, tickets, tracker, "OPS")
}

func validRequest() application.TicketRequest {
	return application.TicketRequest{
		MessageRef: "m1",
		Username:   "alice",
		UserID:     1001,
		Summary:    "Fix login bug",
		Component:  "backend",
		IssueType:  "Story",
	}
}

// --- Tests ---

func TestCreate_HappyPath(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	ledger := &mockLedger{}
	tickets := &mockTicketStore{}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist(nil), vault, ledger, tickets, tracker)

	res, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "OPS-1", res.TicketKey)
	assert.Equal(t, "https://jira.example.com/browse/OPS-1", res.URL)
	assert.False(t, res.Existing)

	assert.Equal(t, 1, tracker.creates)
	require.Len(t, tickets.upserts, 1)
	assert.Equal(t, "OPS-1", tickets.upserts[0].Key)
	assert.Equal(t, "Fix login bug", tickets.upserts[0].Summary)
}

func TestCreate_RedeliverySameKeyOneExternalCall(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	ledger := &mockLedger{}
	tickets := &mockTicketStore{}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist(nil), vault, ledger, tickets, tracker)

	first, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, first.TicketKey, second.TicketKey)
	assert.True(t, second.Existing)
	assert.Equal(t, 1, tracker.creates, "exactly one external creation for a redelivered ref")
}

func TestCreate_Unauthorized_NoSideEffects(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1002": "token"}}
	ledger := &mockLedger{}
	tickets := &mockTicketStore{}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist([]string{"alice"}), vault, ledger, tickets, tracker)

	req := validRequest()
	req.Username = "bob"
	req.UserID = 1002

	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	assert.Zero(t, ledger.lookups, "no ledger access for rejected callers")
	assert.Zero(t, vault.gets, "no vault access for rejected callers")
	assert.Zero(t, tracker.creates, "no external call for rejected callers")
}

func TestCreate_AllowlistMatchesNumericID(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	svc := newCreateService(application.NewAllowlist([]string{"1001"}), vault, &mockLedger{}, &mockTicketStore{}, &mockTracker{})

	req := validRequest()
	req.Username = "" // username unset; id must still match

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreate_CredentialMissing(t *testing.T) {
	vault := &mockVault{}
	ledger := &mockLedger{}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist(nil), vault, ledger, &mockTicketStore{}, tracker)

	_, err := svc.Create(context.Background(), validRequest())
	assert.ErrorIs(t, err, application.ErrCredentialMissing)
	assert.Zero(t, tracker.creates)
	assert.Zero(t, ledger.records)
}

func TestCreate_DecryptFailureSurfaced(t *testing.T) {
	vault := &mockVault{getErr: driven.ErrDecryptFailed}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist(nil), vault, &mockLedger{}, &mockTicketStore{}, tracker)

	_, err := svc.Create(context.Background(), validRequest())
	assert.ErrorIs(t, err, driven.ErrDecryptFailed)
	assert.Zero(t, tracker.creates, "never call the tracker with an unauthenticated credential")
}

func TestCreate_ExternalFailure_NoLedgerWrite(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	ledger := &mockLedger{}
	tracker := &mockTracker{createErr: errors.New("jira is down")}
	svc := newCreateService(application.NewAllowlist(nil), vault, ledger, &mockTicketStore{}, tracker)

	_, err := svc.Create(context.Background(), validRequest())
	require.Error(t, err)
	assert.Zero(t, ledger.records, "failed external call must leave no ledger record")

	// Retry with the same ref succeeds once the tracker recovers.
	tracker.createErr = nil
	res, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "OPS-1", res.TicketKey)
}

func TestCreate_EmptySummaryRejected(t *testing.T) {
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	tracker := &mockTracker{}
	svc := newCreateService(application.NewAllowlist(nil), vault, &mockLedger{}, &mockTicketStore{}, tracker)

	req := validRequest()
	req.Summary = "   "

	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, application.ErrEmptySummary)
	assert.Zero(t, tracker.creates)
}

func TestCreate_RaceLoserReturnsWinningKey(t *testing.T) {
	// Both handlers pass the pre-check before either records, so both create
	// external tickets; the ledger then arbitrates and both callers converge
	// on the recorded key.
	vault := &mockVault{secrets: map[string]string{"1001": "token"}}
	ledger := &mockLedger{}
	tickets := &mockTicketStore{}
	tracker := &mockTracker{nextKey: func(n int) string { return fmt.Sprintf("T%d", n) }}
	svc := newCreateService(application.NewAllowlist(nil), vault, ledger, tickets, tracker)

	start := make(chan struct{})
	results := make([]*application.TicketResult, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Create(context.Background(), validRequest())
		}()
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].TicketKey, results[1].TicketKey, "both callers observe the same final key")
	assert.LessOrEqual(t, tracker.creates, 2)
	assert.Equal(t, 1, len(ledger.links))
}
