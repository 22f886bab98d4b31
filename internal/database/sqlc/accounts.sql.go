package sqlc

import (
	"context"
	"database/sql"
	"time"
)

const accountColumns = `id, name, account_type, server_url, username, password, user_agent, is_active, refresh_interval_hours, last_refreshed_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*M3uAccount, error) {
	var i M3uAccount
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.AccountType,
		&i.ServerUrl,
		&i.Username,
		&i.Password,
		&i.UserAgent,
		&i.IsActive,
		&i.RefreshIntervalHours,
		&i.LastRefreshedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) listAccounts(ctx context.Context, query string, args ...interface{}) ([]*M3uAccount, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*M3uAccount{}
	for rows.Next() {
		i, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAccount = `INSERT INTO m3u_accounts (
    name, account_type, server_url, username, password, user_agent, is_active, refresh_interval_hours
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	Name                 string `json:"name"`
	AccountType          string `json:"account_type"`
	ServerUrl            string `json:"server_url"`
	Username             string `json:"username"`
	Password             string `json:"password"`
	UserAgent            string `json:"user_agent"`
	IsActive             int64  `json:"is_active"`
	RefreshIntervalHours int64  `json:"refresh_interval_hours"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (*M3uAccount, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		arg.Name,
		arg.AccountType,
		arg.ServerUrl,
		arg.Username,
		arg.Password,
		arg.UserAgent,
		arg.IsActive,
		arg.RefreshIntervalHours,
	)
	return scanAccount(row)
}

const getAccount = `SELECT ` + accountColumns + ` FROM m3u_accounts WHERE id = ? LIMIT 1`

func (q *Queries) GetAccount(ctx context.Context, id int64) (*M3uAccount, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const getAccountByName = `SELECT ` + accountColumns + ` FROM m3u_accounts WHERE name = ? LIMIT 1`

func (q *Queries) GetAccountByName(ctx context.Context, name string) (*M3uAccount, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByName, name))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM m3u_accounts ORDER BY name`

func (q *Queries) ListAccounts(ctx context.Context) ([]*M3uAccount, error) {
	return q.listAccounts(ctx, listAccounts)
}

const listActiveAccounts = `SELECT ` + accountColumns + ` FROM m3u_accounts WHERE is_active = 1 ORDER BY name`

func (q *Queries) ListActiveAccounts(ctx context.Context) ([]*M3uAccount, error) {
	return q.listAccounts(ctx, listActiveAccounts)
}

const updateAccount = `UPDATE m3u_accounts SET
    name = ?,
    account_type = ?,
    server_url = ?,
    username = ?,
    password = ?,
    user_agent = ?,
    is_active = ?,
    refresh_interval_hours = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + accountColumns

type UpdateAccountParams struct {
	Name                 string `json:"name"`
	AccountType          string `json:"account_type"`
	ServerUrl            string `json:"server_url"`
	Username             string `json:"username"`
	Password             string `json:"password"`
	UserAgent            string `json:"user_agent"`
	IsActive             int64  `json:"is_active"`
	RefreshIntervalHours int64  `json:"refresh_interval_hours"`
	ID                   int64  `json:"id"`
}

func (q *Queries) UpdateAccount(ctx context.Context, arg UpdateAccountParams) (*M3uAccount, error) {
	row := q.db.QueryRowContext(ctx, updateAccount,
		arg.Name,
		arg.AccountType,
		arg.ServerUrl,
		arg.Username,
		arg.Password,
		arg.UserAgent,
		arg.IsActive,
		arg.RefreshIntervalHours,
		arg.ID,
	)
	return scanAccount(row)
}

const deleteAccount = `DELETE FROM m3u_accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const touchAccountRefreshed = `UPDATE m3u_accounts SET last_refreshed_at = ? WHERE id = ?`

type TouchAccountRefreshedParams struct {
	LastRefreshedAt sql.NullTime `json:"last_refreshed_at"`
	ID              int64        `json:"id"`
}

func (q *Queries) TouchAccountRefreshed(ctx context.Context, arg TouchAccountRefreshedParams) error {
	_, err := q.db.ExecContext(ctx, touchAccountRefreshed, arg.LastRefreshedAt, arg.ID)
	return err
}

const listAccountsDueForRefresh = `SELECT ` + accountColumns + ` FROM m3u_accounts
WHERE is_active = 1
  AND (last_refreshed_at IS NULL OR datetime(last_refreshed_at) < datetime(?, '-' || refresh_interval_hours || ' hours'))
ORDER BY name`

// ListAccountsDueForRefresh returns active accounts whose refresh interval has elapsed at now.
func (q *Queries) ListAccountsDueForRefresh(ctx context.Context, now time.Time) ([]*M3uAccount, error) {
	return q.listAccounts(ctx, listAccountsDueForRefresh, now.UTC().Format("2006-01-02 15:04:05"))
}
