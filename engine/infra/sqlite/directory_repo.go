package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/minutemate/minutemate/engine/directory"
)

var ownerColumns = []string{"id", "name", "department", "email", "account_id", "is_lead"}

// DirectoryRepo implements directory.Store on the owners table.
type DirectoryRepo struct {
	db *sql.DB
}

func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) List(ctx context.Context) ([]directory.Entry, error) {
	query, args, err := squirrel.Select(ownerColumns...).
		From("owners").
		OrderBy("department COLLATE NOCASE", "name COLLATE NOCASE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build owners query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list owners: %w", err)
	}
	defer rows.Close()
	var out []directory.Entry
	for rows.Next() {
		var e directory.Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Department, &e.Email, &e.AccountID, &e.Lead); err != nil {
			return nil, fmt.Errorf("sqlite: scan owner: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter owners: %w", err)
	}
	return out, nil
}

func (r *DirectoryRepo) Upsert(ctx context.Context, entry directory.Entry) error {
	e, err := entry.Normalize()
	if err != nil {
		return err
	}
	query, args, err := squirrel.Insert("owners").
		Columns(append(ownerColumns, "updated_at")...).
		Values(e.ID, e.Name, e.Department, e.Email, e.AccountID, e.Lead, formatTime(time.Now())).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			email = excluded.email,
			account_id = excluded.account_id,
			is_lead = excluded.is_lead,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build owner upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: upsert owner %s: %w", e.ID, err)
	}
	return nil
}

func (r *DirectoryRepo) Delete(ctx context.Context, id string) error {
	query, args, err := squirrel.Delete("owners").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build owner delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: delete owner %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (delete owner): %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: delete owner %s: %w", id, directory.ErrEntryNotFound)
	}
	return nil
}
