package application

import (
	"strconv"
	"strings"
)

// Allowlist decides which chat identities may trigger ticket creation.
// Entries are usernames or numeric user ids, loaded once at startup; an
// empty allowlist permits everyone.
type Allowlist struct {
	entries map[string]struct{}
}

// NewAllowlist builds an Allowlist from configured entries. Blank entries
// are dropped.
func NewAllowlist(entries []string) *Allowlist {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &Allowlist{entries: set}
}

// Allowed reports whether the caller may create tickets, matching exactly by
// username or by numeric id.
func (a *Allowlist) Allowed(username string, userID int64) bool {
	if len(a.entries) == 0 {
		return true
	}
	if username != "" {
		if _, ok := a.entries[username]; ok {
			return true
		}
	}
	if userID != 0 {
		if _, ok := a.entries[strconv.FormatInt(userID, 10)]; ok {
			return true
		}
	}
	return false
}

// Unrestricted reports whether the allowlist is empty (everyone allowed).
func (a *Allowlist) Unrestricted() bool {
	return len(a.entries) == 0
}
