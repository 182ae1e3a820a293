package driven

import (
	"context"
	"errors"
	"time"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// JIRABRIDGE_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set JIRABRIDGE_SECRET_KEY")

// ErrCredentialNotFound is returned by Get when no credential has ever been
// stored for the owner.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrDecryptFailed is returned when a stored ciphertext fails authentication.
// It signals tampered data or a wrong key and must never be swallowed: the
// caller cannot serve the affected owner until an operator intervenes.
var ErrDecryptFailed = errors.New("credential ciphertext failed authentication")

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer is responsible for encryption/decryption;
// this interface operates on plaintext values at the domain boundary.
//
// Writes never mutate prior records: each Set appends a new version and reads
// return only the version with the greatest updatedAt, so a rotation can
// never leave a reader holding a torn or stale-after-write value.
type CredentialStore interface {
	// Set appends a new credential version for owner with the given plaintext
	// value. Returns ErrEncryptionKeyNotSet if the adapter was constructed
	// without an encryption key.
	Set(ctx context.Context, owner, displayName, plaintext string, updatedAt time.Time) error

	// Get retrieves the plaintext of the current (latest updatedAt) credential
	// version for owner. Returns ErrCredentialNotFound if none exists and
	// ErrDecryptFailed if the stored ciphertext does not authenticate.
	Get(ctx context.Context, owner string) (string, error)
}
