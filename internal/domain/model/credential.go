package model

import "time"

// Credential holds a tracker credential for one chat user. Owner is the
// stable numeric chat identity rendered as a string; DisplayName is the
// username at the time the credential was stored, kept for audit only.
type Credential struct {
	ID          int64
	Owner       string
	DisplayName string
	Value       string
	UpdatedAt   time.Time
}
