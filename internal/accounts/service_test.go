package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/testutil"
)

func TestAccountService_Create(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	account, err := service.Create(ctx, CreateAccountInput{
		Name:      "Provider A",
		ServerURL: "http://provider.example:8080/",
		Username:  "alice",
		Password:  "secret",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if account.ID == 0 {
		t.Error("Create() account.ID = 0, want non-zero")
	}
	if account.AccountType != TypeXtream {
		t.Errorf("Create() account.AccountType = %q, want %q", account.AccountType, TypeXtream)
	}
	if account.ServerURL != "http://provider.example:8080" {
		t.Errorf("Create() account.ServerURL = %q, want trailing slash trimmed", account.ServerURL)
	}
	if !account.IsActive {
		t.Error("Create() account.IsActive = false, want true")
	}
	if account.RefreshIntervalHours != defaultRefreshIntervalHours {
		t.Errorf("Create() account.RefreshIntervalHours = %d, want %d", account.RefreshIntervalHours, defaultRefreshIntervalHours)
	}
	if account.LastRefreshedAt != nil {
		t.Errorf("Create() account.LastRefreshedAt = %v, want nil", account.LastRefreshedAt)
	}
}

func TestAccountService_Create_Validation(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateAccountInput
		want  error
	}{
		{
			name:  "missing name",
			input: CreateAccountInput{ServerURL: "http://a.example", Username: "u", Password: "p"},
			want:  ErrNameRequired,
		},
		{
			name:  "bad type",
			input: CreateAccountInput{Name: "x", AccountType: "m3u8", ServerURL: "http://a.example"},
			want:  ErrInvalidAccountType,
		},
		{
			name:  "relative url",
			input: CreateAccountInput{Name: "x", ServerURL: "provider.example", Username: "u", Password: "p"},
			want:  ErrInvalidServerURL,
		},
		{
			name:  "xc without credentials",
			input: CreateAccountInput{Name: "x", ServerURL: "http://a.example"},
			want:  ErrCredentialsRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAccountService_Create_DuplicateName(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	input := CreateAccountInput{Name: "Provider A", AccountType: TypeStandard, ServerURL: "http://a.example"}
	if _, err := service.Create(ctx, input); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := service.Create(ctx, input); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Create() duplicate error = %v, want %v", err, ErrDuplicateName)
	}
}

func TestAccountService_UpdateAndDelete(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	account, err := service.Create(ctx, CreateAccountInput{
		Name: "Provider A", ServerURL: "http://a.example", Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	name := "Provider B"
	inactive := false
	updated, err := service.Update(ctx, account.ID, UpdateAccountInput{Name: &name, IsActive: &inactive})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != name {
		t.Errorf("Update() Name = %q, want %q", updated.Name, name)
	}
	if updated.IsActive {
		t.Error("Update() IsActive = true, want false")
	}
	if updated.Username != "u" {
		t.Errorf("Update() Username = %q, want unchanged %q", updated.Username, "u")
	}

	active, err := service.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() = %d accounts, want 0", len(active))
	}

	if err := service.Delete(ctx, account.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := service.Get(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrAccountNotFound)
	}
	if err := service.Delete(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Delete() twice error = %v, want %v", err, ErrAccountNotFound)
	}
}

func TestAccountService_ListDueForRefresh(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	fresh, err := service.Create(ctx, CreateAccountInput{Name: "fresh", AccountType: TypeStandard, ServerURL: "http://a.example", RefreshIntervalHours: 6})
	if err != nil {
		t.Fatal(err)
	}
	stale, err := service.Create(ctx, CreateAccountInput{Name: "stale", AccountType: TypeStandard, ServerURL: "http://b.example", RefreshIntervalHours: 6})
	if err != nil {
		t.Fatal(err)
	}
	never, err := service.Create(ctx, CreateAccountInput{Name: "never", AccountType: TypeStandard, ServerURL: "http://c.example"})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := service.MarkRefreshed(ctx, fresh.ID, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := service.MarkRefreshed(ctx, stale.ID, now.Add(-7*time.Hour)); err != nil {
		t.Fatal(err)
	}

	due, err := service.ListDueForRefresh(ctx, now)
	if err != nil {
		t.Fatalf("ListDueForRefresh() error = %v", err)
	}

	got := map[int64]bool{}
	for _, a := range due {
		got[a.ID] = true
	}
	if got[fresh.ID] {
		t.Error("ListDueForRefresh() includes an account refreshed an hour ago")
	}
	if !got[stale.ID] {
		t.Error("ListDueForRefresh() misses an account refreshed 7 hours ago")
	}
	if !got[never.ID] {
		t.Error("ListDueForRefresh() misses a never-refreshed account")
	}
}

func TestAccountService_EncryptsPasswords(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	ctx := context.Background()
	secrets, err := crypto.Open(ctx, tdb.Queries, "s3cret")
	if err != nil {
		t.Fatalf("crypto.Open() error = %v", err)
	}
	service := NewService(tdb.Conn, tdb.Logger)
	service.SetSecretStore(secrets)

	account, err := service.Create(ctx, CreateAccountInput{
		Name: "Provider A", ServerURL: "http://a.example", Username: "u", Password: "first",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if account.Password != "first" {
		t.Errorf("Create() Password = %q, want %q", account.Password, "first")
	}

	stored := func() string {
		t.Helper()
		row, err := tdb.Queries.GetAccount(ctx, account.ID)
		if err != nil {
			t.Fatalf("GetAccount() error = %v", err)
		}
		return row.Password
	}
	if p := stored(); !crypto.IsEncrypted(p) {
		t.Fatalf("stored password = %q, want encrypted", p)
	}

	// renaming keeps the stored ciphertext readable
	name := "Provider B"
	if _, err := service.Update(ctx, account.ID, UpdateAccountInput{Name: &name}); err != nil {
		t.Fatalf("Update(name) error = %v", err)
	}
	got, err := service.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Password != "first" {
		t.Errorf("Get() after rename Password = %q, want %q", got.Password, "first")
	}

	password := "second"
	updated, err := service.Update(ctx, account.ID, UpdateAccountInput{Password: &password})
	if err != nil {
		t.Fatalf("Update(password) error = %v", err)
	}
	if updated.Password != "second" {
		t.Errorf("Update() Password = %q, want %q", updated.Password, "second")
	}
	if p := stored(); !crypto.IsEncrypted(p) {
		t.Errorf("stored password after update = %q, want encrypted", p)
	}

	// without the key the account still lists, with a blank password
	plain := NewService(tdb.Conn, tdb.Logger)
	list, err := plain.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Password != "" {
		t.Errorf("List() without key = %+v, want one account with blank password", list)
	}
}
