package sqlc

import (
	"context"
)

const getSetting = `SELECT value FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getSetting, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const insertSettingIfAbsent = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO NOTHING`

type InsertSettingIfAbsentParams struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (q *Queries) InsertSettingIfAbsent(ctx context.Context, arg InsertSettingIfAbsentParams) error {
	_, err := q.db.ExecContext(ctx, insertSettingIfAbsent, arg.Key, arg.Value)
	return err
}

const listAccountPasswords = `SELECT id, password FROM m3u_accounts WHERE password != ''`

type ListAccountPasswordsRow struct {
	ID       int64  `json:"id"`
	Password string `json:"-"`
}

func (q *Queries) ListAccountPasswords(ctx context.Context) ([]*ListAccountPasswordsRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccountPasswords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*ListAccountPasswordsRow{}
	for rows.Next() {
		var i ListAccountPasswordsRow
		if err := rows.Scan(&i.ID, &i.Password); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setAccountPassword = `UPDATE m3u_accounts SET password = ? WHERE id = ?`

type SetAccountPasswordParams struct {
	Password string `json:"-"`
	ID       int64  `json:"id"`
}

func (q *Queries) SetAccountPassword(ctx context.Context, arg SetAccountPasswordParams) error {
	_, err := q.db.ExecContext(ctx, setAccountPassword, arg.Password, arg.ID)
	return err
}
