// Package crypto encrypts provider credentials at rest.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vodsync/vodsync/internal/database/sqlc"
)

const (
	// EncryptedPrefix marks encrypted values in the database.
	EncryptedPrefix = "enc:v1:"

	pbkdf2Iterations = 100000
	keyLength        = 32 // AES-256
	saltLength       = 16

	saltSetting  = "secrets.salt"
	checkSetting = "secrets.check"
	checkValue   = "vodsync"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrWrongKey          = errors.New("secret key does not match the one the database was encrypted with")
	ErrNoKey             = errors.New("value is encrypted but no secret key is configured")
)

// SecretStore encrypts and decrypts values with a key derived from the
// configured secret. A nil store passes plaintext through unchanged.
type SecretStore struct {
	key []byte
}

// NewSecretStore derives the AES key from secret and salt.
func NewSecretStore(secret string, salt []byte) *SecretStore {
	key := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, keyLength, sha256.New)
	return &SecretStore{key: key}
}

// GenerateSalt creates a random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Open returns the store for secret, creating the database salt on first use.
// An empty secret disables encryption and returns nil. A secret that cannot
// read the stored check value fails with ErrWrongKey.
func Open(ctx context.Context, q *sqlc.Queries, secret string) (*SecretStore, error) {
	if secret == "" {
		return nil, nil
	}

	salt, err := loadSalt(ctx, q)
	if err != nil {
		return nil, err
	}
	store := NewSecretStore(secret, salt)

	check, err := store.Encrypt(checkValue)
	if err != nil {
		return nil, err
	}
	if err := q.InsertSettingIfAbsent(ctx, sqlc.InsertSettingIfAbsentParams{Key: checkSetting, Value: check}); err != nil {
		return nil, fmt.Errorf("failed to store key check: %w", err)
	}
	stored, err := q.GetSetting(ctx, checkSetting)
	if err != nil {
		return nil, fmt.Errorf("failed to read key check: %w", err)
	}
	if got, err := store.Decrypt(stored); err != nil || got != checkValue {
		return nil, ErrWrongKey
	}
	return store, nil
}

func loadSalt(ctx context.Context, q *sqlc.Queries) ([]byte, error) {
	encoded, err := q.GetSetting(ctx, saltSetting)
	if errors.Is(err, sql.ErrNoRows) {
		salt, err := GenerateSalt()
		if err != nil {
			return nil, err
		}
		err = q.InsertSettingIfAbsent(ctx, sqlc.InsertSettingIfAbsentParams{
			Key:   saltSetting,
			Value: base64.StdEncoding.EncodeToString(salt),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store salt: %w", err)
		}
		encoded, err = q.GetSetting(ctx, saltSetting)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(salt) != saltLength {
		return nil, fmt.Errorf("stored salt is corrupt")
	}
	return salt, nil
}

// Encrypt encrypts plaintext with AES-256-GCM and returns it base64 encoded
// behind EncryptedPrefix. Empty and already encrypted values are returned as is.
func (s *SecretStore) Encrypt(plaintext string) (string, error) {
	if s == nil || plaintext == "" || IsEncrypted(plaintext) {
		return plaintext, nil
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Values without the prefix are legacy plaintext
// and returned as is.
func (s *SecretStore) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if s == nil {
		return "", ErrNoKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// EncryptAccountPasswords encrypts every plaintext account password in place
// and returns how many were rewritten.
func (s *SecretStore) EncryptAccountPasswords(ctx context.Context, q *sqlc.Queries) (int, error) {
	if s == nil {
		return 0, nil
	}
	rows, err := q.ListAccountPasswords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list account passwords: %w", err)
	}
	n := 0
	for _, row := range rows {
		if IsEncrypted(row.Password) {
			continue
		}
		enc, err := s.Encrypt(row.Password)
		if err != nil {
			return n, err
		}
		if err := q.SetAccountPassword(ctx, sqlc.SetAccountPasswordParams{Password: enc, ID: row.ID}); err != nil {
			return n, fmt.Errorf("failed to encrypt password of account %d: %w", row.ID, err)
		}
		n++
	}
	return n, nil
}

func (s *SecretStore) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsEncrypted checks if a value has the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}
