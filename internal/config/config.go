// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment
// variables. It is built once at startup and treated as read-only for the
// process lifetime.
type Config struct {
	TelegramToken string

	JiraURL          string
	JiraProject      string
	DefaultComponent string
	DefaultIssueType string
	Components       []string
	IssueTypes       []string

	// ServiceToken is an optional tracker credential for the background
	// mirror refresh. Without it, refresh stays inactive.
	ServiceToken string

	// SecretKey is the 32-byte AES-256 key for credential encryption, or nil
	// when JIRABRIDGE_SECRET_KEY is unset (credential storage disabled).
	SecretKey []byte

	AllowedUsers    []string
	DBPath          string
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Required: JIRABRIDGE_TELEGRAM_TOKEN, JIRABRIDGE_JIRA_URL, JIRABRIDGE_JIRA_PROJECT.
// JIRABRIDGE_SECRET_KEY is a hex-encoded 32-byte key; without it the app starts but
// users cannot register credentials. Optional variables with defaults:
// JIRABRIDGE_COMPONENT (org), JIRABRIDGE_ISSUE_TYPES (Story,Bug),
// JIRABRIDGE_DB_PATH (jirabridge.db), JIRABRIDGE_REFRESH_INTERVAL (15m).
func Load() (*Config, error) {
	telegramToken := os.Getenv("JIRABRIDGE_TELEGRAM_TOKEN")
	if telegramToken == "" {
		return nil, fmt.Errorf("JIRABRIDGE_TELEGRAM_TOKEN is required")
	}

	jiraURL := os.Getenv("JIRABRIDGE_JIRA_URL")
	if jiraURL == "" {
		return nil, fmt.Errorf("JIRABRIDGE_JIRA_URL is required")
	}

	jiraProject := os.Getenv("JIRABRIDGE_JIRA_PROJECT")
	if jiraProject == "" {
		return nil, fmt.Errorf("JIRABRIDGE_JIRA_PROJECT is required")
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("JIRABRIDGE_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("JIRABRIDGE_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("JIRABRIDGE_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	defaultComponent := "org"
	if v, ok := os.LookupEnv("JIRABRIDGE_COMPONENT"); ok && v != "" {
		defaultComponent = v
	}

	components := splitList(os.Getenv("JIRABRIDGE_COMPONENTS"))
	if len(components) == 0 {
		components = []string{defaultComponent}
	}

	issueTypes := splitList(os.Getenv("JIRABRIDGE_ISSUE_TYPES"))
	if len(issueTypes) == 0 {
		issueTypes = []string{"Story", "Bug"}
	}
	defaultIssueType := issueTypes[0]

	dbPath := "jirabridge.db"
	if v, ok := os.LookupEnv("JIRABRIDGE_DB_PATH"); ok {
		dbPath = v
	}

	refreshInterval := 15 * time.Minute
	if v, ok := os.LookupEnv("JIRABRIDGE_REFRESH_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("JIRABRIDGE_REFRESH_INTERVAL has invalid duration %q: %w", v, err)
		}
		refreshInterval = parsed
	}

	return &Config{
		TelegramToken:    telegramToken,
		JiraURL:          strings.TrimRight(jiraURL, "/"),
		JiraProject:      jiraProject,
		DefaultComponent: defaultComponent,
		DefaultIssueType: defaultIssueType,
		Components:       components,
		IssueTypes:       issueTypes,
		ServiceToken:     os.Getenv("JIRABRIDGE_JIRA_SERVICE_TOKEN"),
		SecretKey:        secretKey,
		AllowedUsers:     splitList(os.Getenv("JIRABRIDGE_ALLOWED_USERS")),
		DBPath:           dbPath,
		RefreshInterval:  refreshInterval,
	}, nil
}

// splitList splits a comma-separated env value, trimming whitespace and
// dropping empty entries. Returns an empty slice, never nil.
func splitList(v string) []string {
	items := []string{}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
