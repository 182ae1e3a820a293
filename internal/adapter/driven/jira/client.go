// Package jira implements the TrackerClient port against the Jira REST API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/jirabridge/jirabridge/internal/domain/model"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TrackerClient = (*Client)(nil)

// Client implements the driven.TrackerClient port by speaking the Jira REST
// v2 API directly. Authentication is a per-request Bearer token: the caller
// supplies the credential on every call and the client keeps no per-user
// state, so one instance serves all users.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Jira client for the given server URL. GET responses
// flow through an in-memory httpcache transport so repeated ticket reads
// become conditional requests. The cache does not vary on the Authorization
// header; that is acceptable because the cached payload is ticket metadata
// visible to every user of the bridge.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type issueFields struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Project     *keyRef        `json:"project,omitempty"`
	IssueType   *nameRef       `json:"issuetype,omitempty"`
	Components  []nameRef      `json:"components,omitempty"`
	Status      *statusPayload `json:"status,omitempty"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

type statusPayload struct {
	Name string `json:"name"`
}

type issuePayload struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

// CreateIssue creates a ticket and returns its key. Any transport or
// non-2xx response is returned as an error with the outcome unknown; the
// caller must not assume the ticket was not created.
func (c *Client) CreateIssue(ctx context.Context, credential string, req model.IssueRequest) (string, error) {
	body := issuePayload{
		Fields: issueFields{
			Summary:     req.Summary,
			Description: req.Description,
			Project:     &keyRef{Key: req.Project},
			IssueType:   &nameRef{Name: req.IssueType},
		},
	}
	if req.Component != "" {
		body.Fields.Components = []nameRef{{Name: req.Component}}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal issue request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/api/2/issue", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	c.setHeaders(httpReq, credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("create issue", resp)
	}

	var created issuePayload
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("create issue: response carried no issue key")
	}
	return created.Key, nil
}

// GetIssue fetches current status, summary and issue type for a ticket.
func (c *Client) GetIssue(ctx context.Context, credential, ticketKey string) (*model.TicketInfo, error) {
	url := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=status,summary,issuetype", c.baseURL, ticketKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build get request: %w", err)
	}
	c.setHeaders(httpReq, credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", ticketKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get issue %s: %w", ticketKey, driven.ErrIssueNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(fmt.Sprintf("get issue %s", ticketKey), resp)
	}

	var payload issuePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w", ticketKey, err)
	}

	info := &model.TicketInfo{
		Key:     payload.Key,
		Summary: payload.Fields.Summary,
	}
	if info.Key == "" {
		info.Key = ticketKey
	}
	if payload.Fields.Status != nil {
		info.Status = payload.Fields.Status.Name
	}
	if payload.Fields.IssueType != nil {
		info.TaskType = payload.Fields.IssueType.Name
	}
	return info, nil
}

// IssueURL returns the human-facing browse URL for a ticket key.
func (c *Client) IssueURL(ticketKey string) string {
	return c.baseURL + "/browse/" + ticketKey
}

func (c *Client) setHeaders(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	if req.Method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
}

// statusError summarizes a non-2xx response. The body is truncated: Jira
// error payloads can be large and the first lines carry the field errors.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%s: tracker returned %s", op, resp.Status)
	}
	return fmt.Errorf("%s: tracker returned %s: %s", op, resp.Status, msg)
}
