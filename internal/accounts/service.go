package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/database/sqlc"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrNameRequired        = errors.New("account name is required")
	ErrDuplicateName       = errors.New("an account with this name already exists")
	ErrInvalidAccountType  = errors.New("invalid account type (must be 'XC' or 'STD')")
	ErrInvalidServerURL    = errors.New("server url must be an absolute http(s) url")
	ErrCredentialsRequired = errors.New("username and password are required for XC accounts")
)

const defaultRefreshIntervalHours = 24

// Service provides account operations.
type Service struct {
	db      *sql.DB
	queries *sqlc.Queries
	logger  zerolog.Logger
	secrets *crypto.SecretStore
}

// NewService creates a new account service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		queries: sqlc.New(db),
		logger:  logger.With().Str("component", "accounts").Logger(),
	}
}

// SetSecretStore enables password encryption at rest.
func (s *Service) SetSecretStore(store *crypto.SecretStore) {
	s.secrets = store
}

// Get retrieves an account by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	row, err := s.queries.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return s.fromRow(row), nil
}

// List returns all accounts ordered by name.
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return s.fromRows(rows), nil
}

// ListActive returns the accounts that take part in refreshes.
func (s *Service) ListActive(ctx context.Context) ([]*Account, error) {
	rows, err := s.queries.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return s.fromRows(rows), nil
}

// ListDueForRefresh returns active accounts whose refresh interval has elapsed.
func (s *Service) ListDueForRefresh(ctx context.Context, now time.Time) ([]*Account, error) {
	rows, err := s.queries.ListAccountsDueForRefresh(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts due for refresh: %w", err)
	}
	return s.fromRows(rows), nil
}

// Create validates and stores a new account.
func (s *Service) Create(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if input.AccountType == "" {
		input.AccountType = TypeXtream
	}
	input.AccountType = strings.ToUpper(input.AccountType)
	input.ServerURL = normalizeServerURL(input.ServerURL)
	input.Name = strings.TrimSpace(input.Name)
	if input.RefreshIntervalHours <= 0 {
		input.RefreshIntervalHours = defaultRefreshIntervalHours
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	if err := validate(input.Name, input.AccountType, input.ServerURL, input.Username, input.Password); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, input.Name, 0); err != nil {
		return nil, err
	}

	password, err := s.secrets.Encrypt(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}

	row, err := s.queries.CreateAccount(ctx, sqlc.CreateAccountParams{
		Name:                 input.Name,
		AccountType:          input.AccountType,
		ServerUrl:            input.ServerURL,
		Username:             input.Username,
		Password:             password,
		UserAgent:            input.UserAgent,
		IsActive:             boolToInt(active),
		RefreshIntervalHours: int64(input.RefreshIntervalHours),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info().Int64("id", row.ID).Str("name", row.Name).Str("type", row.AccountType).Msg("Created account")
	return s.fromRow(row), nil
}

// Update applies the non-nil fields of input to an account.
func (s *Service) Update(ctx context.Context, id int64, input UpdateAccountInput) (*Account, error) {
	current, err := s.queries.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	params := sqlc.UpdateAccountParams{
		Name:                 current.Name,
		AccountType:          current.AccountType,
		ServerUrl:            current.ServerUrl,
		Username:             current.Username,
		Password:             current.Password,
		UserAgent:            current.UserAgent,
		IsActive:             current.IsActive,
		RefreshIntervalHours: current.RefreshIntervalHours,
		ID:                   id,
	}
	if input.Name != nil {
		params.Name = strings.TrimSpace(*input.Name)
	}
	if input.AccountType != nil {
		params.AccountType = strings.ToUpper(*input.AccountType)
	}
	if input.ServerURL != nil {
		params.ServerUrl = normalizeServerURL(*input.ServerURL)
	}
	if input.Username != nil {
		params.Username = *input.Username
	}
	if input.Password != nil {
		params.Password = *input.Password
	}
	if input.UserAgent != nil {
		params.UserAgent = *input.UserAgent
	}
	if input.IsActive != nil {
		params.IsActive = boolToInt(*input.IsActive)
	}
	if input.RefreshIntervalHours != nil && *input.RefreshIntervalHours > 0 {
		params.RefreshIntervalHours = int64(*input.RefreshIntervalHours)
	}

	if err := validate(params.Name, params.AccountType, params.ServerUrl, params.Username, params.Password); err != nil {
		return nil, err
	}
	if params.Name != current.Name {
		if err := s.checkNameFree(ctx, params.Name, id); err != nil {
			return nil, err
		}
	}
	if input.Password != nil {
		if params.Password, err = s.secrets.Encrypt(params.Password); err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
	}

	row, err := s.queries.UpdateAccount(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return s.fromRow(row), nil
}

// Delete removes an account. Its relations cascade; orphaned catalog rows are left
// for the cleanup task.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	s.logger.Info().Int64("id", id).Msg("Deleted account")
	return nil
}

// MarkRefreshed stamps the account's last refresh time.
func (s *Service) MarkRefreshed(ctx context.Context, id int64, at time.Time) error {
	err := s.queries.TouchAccountRefreshed(ctx, sqlc.TouchAccountRefreshedParams{
		LastRefreshedAt: sql.NullTime{Time: at.UTC(), Valid: true},
		ID:              id,
	})
	if err != nil {
		return fmt.Errorf("failed to stamp account refresh: %w", err)
	}
	return nil
}

func (s *Service) checkNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.queries.GetAccountByName(ctx, name)
	if err == nil && existing.ID != selfID {
		return ErrDuplicateName
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check account name: %w", err)
	}
	return nil
}

func validate(name, accountType, serverURL, username, password string) error {
	if name == "" {
		return ErrNameRequired
	}
	if accountType != TypeXtream && accountType != TypeStandard {
		return ErrInvalidAccountType
	}
	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}
	if accountType == TypeXtream && (username == "" || password == "") {
		return ErrCredentialsRequired
	}
	return nil
}

// fromRow decrypts the stored password. An unreadable password is blanked
// so the account still lists, and refreshes fail on credentials.
func (s *Service) fromRow(row *sqlc.M3uAccount) *Account {
	a := FromRow(row)
	password, err := s.secrets.Decrypt(row.Password)
	if err != nil {
		s.logger.Warn().Err(err).Int64("id", row.ID).Msg("Failed to decrypt account password")
		password = ""
	}
	a.Password = password
	return a
}

func (s *Service) fromRows(rows []*sqlc.M3uAccount) []*Account {
	out := make([]*Account, len(rows))
	for i, row := range rows {
		out[i] = s.fromRow(row)
	}
	return out
}
