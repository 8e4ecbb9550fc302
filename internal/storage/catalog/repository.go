package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists the vault catalog, the list of vaults the user has
// opened, keyed by a stable id so renaming a directory keeps its history.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type Vault struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	LastOpenedAt time.Time `json:"lastOpenedAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type UpsertVaultParams struct {
	ID   string
	Path string
	Name string
}

// ListVaults returns the catalog ordered by recency of use.
func (r *Repository) ListVaults(ctx context.Context) ([]Vault, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, name, last_opened_at, created_at, updated_at
		FROM vaults
		ORDER BY COALESCE(last_opened_at, updated_at) DESC, path ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	var vaults []Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

// UpsertVault registers a vault or refreshes its name. The path is the
// conflict key: reopening a known directory keeps the stored id, so the
// caller's id is only used for first registration.
func (r *Repository) UpsertVault(ctx context.Context, params UpsertVaultParams) (Vault, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vaults (id, path, name)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			updated_at = CURRENT_TIMESTAMP
	`, params.ID, params.Path, params.Name)
	if err != nil {
		return Vault{}, fmt.Errorf("upsert vault: %w", err)
	}
	return r.GetVaultByPath(ctx, params.Path)
}

func (r *Repository) GetVaultByPath(ctx context.Context, path string) (Vault, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, name, last_opened_at, created_at, updated_at
		FROM vaults
		WHERE path = ?
	`, path)
	v, err := scanVault(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Vault{}, fmt.Errorf("vault not found: %s", path)
		}
		return Vault{}, err
	}
	return v, nil
}

func (r *Repository) GetVaultByID(ctx context.Context, id string) (Vault, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, name, last_opened_at, created_at, updated_at
		FROM vaults
		WHERE id = ?
	`, id)
	v, err := scanVault(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Vault{}, fmt.Errorf("vault %s not found", id)
		}
		return Vault{}, err
	}
	return v, nil
}

func (r *Repository) DeleteVault(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaults WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vault: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repository) MarkVaultOpened(ctx context.Context, id string, openedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vaults
		SET last_opened_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, openedAt, id)
	if err != nil {
		return fmt.Errorf("update last_opened_at: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVault(row rowScanner) (Vault, error) {
	var (
		v    Vault
		last sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Path, &v.Name, &last, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Vault{}, err
		}
		return Vault{}, fmt.Errorf("scan vault: %w", err)
	}
	if last.Valid {
		v.LastOpenedAt = last.Time
	}
	return v, nil
}
