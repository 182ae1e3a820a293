package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Credential values are encrypted with AES-256-GCM before write and decrypted
// after read. Writes append a new row per version; reads return the row with
// the greatest updated_at for the owner.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Set appends a new credential version for the owner. Prior rows are never
// touched, so a concurrent reader sees either the previous version or the
// new one, never a partial write.
func (r *CredentialRepo) Set(ctx context.Context, owner, displayName, plaintext string, updatedAt time.Time) error {
	encrypted, err := r.encrypt(plaintext)
	if err != nil {
		return err
	}

	const query = `INSERT INTO credentials (owner, display_name, value, updated_at) VALUES (?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query, owner, displayName, encrypted, updatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("set credential for %q: %w", owner, err)
	}
	return nil
}

// Get retrieves the plaintext of the current credential version for the
// owner. The id tiebreak keeps the result deterministic when two versions
// share an updated_at.
func (r *CredentialRepo) Get(ctx context.Context, owner string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `
		SELECT value FROM credentials
		WHERE owner = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, owner).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("credential for %q: %w", owner, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get credential for %q: %w", owner, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("credential for %q: %w", owner, err)
	}
	return plaintext, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext. Authentication
// failure maps to driven.ErrDecryptFailed so callers can distinguish the
// data-integrity case from transport errors.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", driven.ErrDecryptFailed)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short: %w", driven.ErrDecryptFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", driven.ErrDecryptFailed
	}

	return string(plaintext), nil
}
