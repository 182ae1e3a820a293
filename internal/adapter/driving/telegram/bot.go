// Package telegram implements the chat-transport driving adapter over the
// Telegram Bot API's long-polling interface. Each inbound update is handled
// in its own goroutine; the stores behind the application services are safe
// under that concurrency, so no dispatcher-level serialization is needed.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jirabridge/jirabridge/internal/application"
	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// pollTimeoutSeconds is the long-poll hold time requested from the Bot API.
const pollTimeoutSeconds = 50

// Services bundles everything the bot needs to route commands.
type Services struct {
	Gate       *application.Allowlist
	Creator    *application.CreateService
	Status     *application.StatusService
	Vault      driven.CredentialStore
	Components *application.Matcher
	IssueTypes *application.Matcher

	DefaultComponent string
	DefaultIssueType string
}

// Bot long-polls Telegram for commands and replies with the outcome.
type Bot struct {
	httpClient *http.Client
	baseURL    string
	svc        Services
}

// NewBot creates a Bot for the given bot token. The HTTP client timeout
// exceeds the long-poll hold time so healthy empty polls don't error.
func NewBot(token string, svc Services) *Bot {
	return &Bot{
		httpClient: &http.Client{Timeout: (pollTimeoutSeconds + 10) * time.Second},
		baseURL:    "https://api.telegram.org/bot" + token,
		svc:        svc,
	}
}

// NewBotWithHTTPClient creates a Bot against a custom API endpoint.
// This constructor is intended for testing with an httptest server.
func NewBotWithHTTPClient(httpClient *http.Client, baseURL string, svc Services) *Bot {
	return &Bot{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), svc: svc}
}

// Run polls for updates until the context is canceled. Updates are
// dispatched concurrently; the confirmed offset only advances past an
// update once it has been handed off. Telegram redelivers anything past
// the offset on restart; the creation path's ledger makes that redelivery
// harmless.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("telegram bot started")
	var offset int64

	for {
		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("telegram bot stopped")
				return nil
			}
			slog.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				slog.Info("telegram bot stopped")
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	command, args := splitCommand(msg.Text)

	var reply string
	switch command {
	case "/start":
		reply = "Hello! I create tracker tickets from chat.\nUse /task <description> to create one, /help for details."
	case "/help":
		reply = b.helpText()
	case "/userinfo":
		reply = b.userInfo(msg.From)
	case "/jiratoken":
		reply = b.handleToken(ctx, msg.From, args)
	case "/status":
		reply = b.handleStatus(ctx, msg.From, args)
	case "/task":
		reply = b.handleTask(ctx, msg, args)
	default:
		return
	}

	if reply == "" {
		return
	}
	if err := b.sendMessage(ctx, msg.Chat.ID, reply); err != nil {
		slog.Error("reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// handleTask parses and runs one creation command. The message ref is
// derived from chat and message ids, so a transport-level redelivery of the
// same message carries the same ref.
func (b *Bot) handleTask(ctx context.Context, msg *Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return b.usageText()
	}

	cmd := parseTask(args)

	component := b.svc.DefaultComponent
	if cmd.Component != "" {
		matched, ok := b.svc.Components.Match(cmd.Component)
		if !ok {
			return fmt.Sprintf("No close match for component %q.\nAvailable components:\n%s",
				cmd.Component, bulleted(b.svc.Components.Choices()))
		}
		component = matched
	}

	issueType := b.svc.DefaultIssueType
	if cmd.IssueType != "" {
		matched, ok := b.svc.IssueTypes.Match(cmd.IssueType)
		if !ok {
			return fmt.Sprintf("No close match for issue type %q.\nAvailable issue types:\n%s",
				cmd.IssueType, bulleted(b.svc.IssueTypes.Choices()))
		}
		issueType = matched
	}

	result, err := b.svc.Creator.Create(ctx, application.TicketRequest{
		MessageRef:  messageRef(msg),
		Username:    msg.From.Username,
		UserID:      msg.From.ID,
		Summary:     cmd.Summary,
		Description: cmd.Description,
		Component:   component,
		IssueType:   issueType,
	})
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return "Access denied. You are not authorized to create tickets.\nContact the administrator to get access."
	case errors.Is(err, application.ErrCredentialMissing):
		return "No tracker credential on file for you.\nRegister one with /jiratoken <token> first."
	case errors.Is(err, application.ErrEmptySummary):
		return b.usageText()
	case err != nil:
		slog.Error("ticket creation failed", "message_ref", messageRef(msg), "error", err)
		return "Ticket creation failed. Please try again later; retrying is safe."
	}

	if result.Existing {
		return fmt.Sprintf("This command was already processed.\nTicket: %s\nURL: %s", result.TicketKey, result.URL)
	}
	return fmt.Sprintf("Ticket created.\nKey: %s\nURL: %s", result.TicketKey, result.URL)
}

func (b *Bot) handleToken(ctx context.Context, from *User, args string) string {
	token := strings.TrimSpace(args)
	if token == "" {
		return "Usage: /jiratoken <your tracker API token>"
	}

	owner := fmt.Sprintf("%d", from.ID)
	if err := b.svc.Vault.Set(ctx, owner, from.Username, token, time.Now()); err != nil {
		slog.Error("credential store failed", "user_id", from.ID, "error", err)
		return "Could not store the credential. Please try again later."
	}
	return "Credential stored. You can now create tickets with /task."
}

func (b *Bot) handleStatus(ctx context.Context, from *User, args string) string {
	key := strings.TrimSpace(args)
	if key == "" {
		return "Usage: /status <ticket-key>"
	}

	info, err := b.svc.Status.Status(ctx, from.ID, key)
	switch {
	case errors.Is(err, application.ErrCredentialMissing):
		return "No tracker credential on file for you.\nRegister one with /jiratoken <token> first."
	case errors.Is(err, driven.ErrIssueNotFound):
		return fmt.Sprintf("Ticket %s does not exist in the tracker.", key)
	case err != nil:
		slog.Error("status lookup failed", "ticket", key, "error", err)
		return "Status lookup failed. Please try again later."
	}

	return fmt.Sprintf("%s [%s] %s\nStatus: %s", info.Key, info.TaskType, info.Summary, info.Status)
}

func (b *Bot) userInfo(from *User) string {
	access := "not authorized"
	if b.svc.Gate.Allowed(from.Username, from.ID) {
		access = "authorized"
	}
	username := from.Username
	if username == "" {
		username = "(not set)"
	}
	return fmt.Sprintf("User ID: %d\nUsername: %s\nAccess: %s", from.ID, username, access)
}

func (b *Bot) helpText() string {
	return strings.Join([]string{
		"Commands:",
		"/task <summary> - create a ticket",
		"/task <summary> component: <label> - pick a component (fuzzy matched)",
		"/task <summary> type: <label> - pick an issue type (fuzzy matched)",
		"/task <summary> desc: <text> - set an explicit description",
		"/jiratoken <token> - register your tracker API token",
		"/status <ticket-key> - look up a ticket's status",
		"/userinfo - show your identity and access",
		"",
		"Issue types: " + strings.Join(b.svc.IssueTypes.Choices(), ", "),
		"Components: " + strings.Join(b.svc.Components.Choices(), ", "),
	}, "\n")
}

func (b *Bot) usageText() string {
	return "Please provide a task description.\nExamples:\n" +
		"/task Fix login bug\n" +
		"/task Update schema component: devops type: Bug\n" +
		"/task Add SSO desc: support SAML and OIDC"
}

// messageRef builds the deduplication key for one logical command.
func messageRef(msg *Message) string {
	return fmt.Sprintf("tg-%d-%d", msg.Chat.ID, msg.MessageID)
}

func bulleted(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
