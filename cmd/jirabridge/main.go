package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	jiraadapter "github.com/jirabridge/jirabridge/internal/adapter/driven/jira"
	sqliteadapter "github.com/jirabridge/jirabridge/internal/adapter/driven/sqlite"
	"github.com/jirabridge/jirabridge/internal/adapter/driving/telegram"
	"github.com/jirabridge/jirabridge/internal/application"
	"github.com/jirabridge/jirabridge/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"jira_url", cfg.JiraURL,
		"jira_project", cfg.JiraProject,
		"db_path", cfg.DBPath,
		"refresh_interval", cfg.RefreshInterval,
		"allowed_users", len(cfg.AllowedUsers),
		"credentials_enabled", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and services.
	vault := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	ledger := sqliteadapter.NewLedgerRepo(db)
	tickets := sqliteadapter.NewTicketRepo(db)
	tracker := jiraadapter.NewClient(cfg.JiraURL)
	gate := application.NewAllowlist(cfg.AllowedUsers)

	creator := application.NewCreateService(gate, vault, ledger, tickets, tracker, cfg.JiraProject)
	status := application.NewStatusService(vault, tickets, tracker)
	refresh := application.NewRefreshService(tickets, tracker, cfg.ServiceToken, cfg.RefreshInterval)

	bot := telegram.NewBot(cfg.TelegramToken, telegram.Services{
		Gate:             gate,
		Creator:          creator,
		Status:           status,
		Vault:            vault,
		Components:       application.NewMatcher(cfg.Components),
		IssueTypes:       application.NewMatcher(cfg.IssueTypes),
		DefaultComponent: cfg.DefaultComponent,
		DefaultIssueType: cfg.DefaultIssueType,
	})

	// 6. Start the background mirror refresh.
	go refresh.Start(ctx)

	// 7. Poll the chat transport until shutdown.
	if err := bot.Run(ctx); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
