package sqlc

import (
	"context"
)

const upsertCategory = `INSERT INTO vod_categories (name, category_type) VALUES (?, ?)
ON CONFLICT (name, category_type) DO UPDATE SET name = excluded.name
RETURNING id`

type UpsertCategoryParams struct {
	Name         string `json:"name"`
	CategoryType string `json:"category_type"`
}

func (q *Queries) UpsertCategory(ctx context.Context, arg UpsertCategoryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertCategory, arg.Name, arg.CategoryType)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listCategories = `SELECT id, name, category_type, created_at FROM vod_categories
WHERE category_type = ? ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context, categoryType string) ([]*VodCategory, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, categoryType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*VodCategory{}
	for rows.Next() {
		var i VodCategory
		if err := rows.Scan(&i.ID, &i.Name, &i.CategoryType, &i.CreatedAt); err != nil {
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
