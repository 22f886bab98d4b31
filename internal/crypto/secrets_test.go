package crypto

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vodsync/vodsync/internal/testutil"
)

func TestSecretStore_RoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	store := NewSecretStore("correct horse", salt)

	enc, err := store.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(enc, EncryptedPrefix) {
		t.Fatalf("Encrypt() = %q, want %q prefix", enc, EncryptedPrefix)
	}
	if strings.Contains(enc, "hunter2") {
		t.Errorf("Encrypt() = %q leaks the plaintext", enc)
	}

	again, err := store.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if again == enc {
		t.Error("Encrypt() produced identical ciphertexts, want a fresh nonce each time")
	}

	got, err := store.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Decrypt() = %q, want %q", got, "hunter2")
	}
}

func TestSecretStore_PassThrough(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("key", salt)

	tests := []struct {
		name  string
		store *SecretStore
		input string
	}{
		{"empty value", store, ""},
		{"legacy plaintext", store, "plain"},
		{"nil store", nil, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.store.Decrypt(tt.input)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if got != tt.input {
				t.Errorf("Decrypt() = %q, want %q", got, tt.input)
			}
		})
	}

	if got, _ := (*SecretStore)(nil).Encrypt("plain"); got != "plain" {
		t.Errorf("nil Encrypt() = %q, want plaintext", got)
	}
	enc, _ := store.Encrypt("x")
	if got, _ := store.Encrypt(enc); got != enc {
		t.Error("Encrypt() re-encrypted an encrypted value")
	}
}

func TestSecretStore_DecryptFailures(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("key", salt)
	enc, err := store.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tests := []struct {
		name  string
		store *SecretStore
		input string
		want  error
	}{
		{"no key", nil, enc, ErrNoKey},
		{"other key", NewSecretStore("other", salt), enc, ErrDecryptionFailed},
		{"bad base64", store, EncryptedPrefix + "!!!", ErrInvalidCiphertext},
		{"too short", store, EncryptedPrefix + "AAAA", ErrInvalidCiphertext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.store.Decrypt(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	store, err := Open(ctx, tdb.Queries, "")
	if err != nil || store != nil {
		t.Fatalf("Open(\"\") = %v, %v, want nil, nil", store, err)
	}

	first, err := Open(ctx, tdb.Queries, "s3cret")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	enc, err := first.Encrypt("pass")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// the salt is persisted, so a reopened store reads old values
	second, err := Open(ctx, tdb.Queries, "s3cret")
	if err != nil {
		t.Fatalf("Open() again error = %v", err)
	}
	if got, err := second.Decrypt(enc); err != nil || got != "pass" {
		t.Errorf("reopened Decrypt() = %q, %v, want %q", got, err, "pass")
	}

	if _, err := Open(ctx, tdb.Queries, "wrong"); !errors.Is(err, ErrWrongKey) {
		t.Errorf("Open(wrong) error = %v, want ErrWrongKey", err)
	}
}

func TestEncryptAccountPasswords(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	acc := tdb.CreateAccount(t, "Provider A", "http://provider.example")

	if n, err := (*SecretStore)(nil).EncryptAccountPasswords(ctx, tdb.Queries); err != nil || n != 0 {
		t.Fatalf("nil EncryptAccountPasswords() = %d, %v, want 0, nil", n, err)
	}

	store, err := Open(ctx, tdb.Queries, "s3cret")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	n, err := store.EncryptAccountPasswords(ctx, tdb.Queries)
	if err != nil {
		t.Fatalf("EncryptAccountPasswords() error = %v", err)
	}
	if n != 1 {
		t.Errorf("EncryptAccountPasswords() = %d, want 1", n)
	}

	row, err := tdb.Queries.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !IsEncrypted(row.Password) {
		t.Fatalf("stored password = %q, want encrypted", row.Password)
	}
	if got, _ := store.Decrypt(row.Password); got != "pass" {
		t.Errorf("Decrypt(stored) = %q, want %q", got, "pass")
	}

	if n, err := store.EncryptAccountPasswords(ctx, tdb.Queries); err != nil || n != 0 {
		t.Errorf("second EncryptAccountPasswords() = %d, %v, want 0, nil", n, err)
	}
}
