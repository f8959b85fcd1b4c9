package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/tenant"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, t *tenant.Tenant) error {
	now := time.Now()
	row := r.db.WithContext(ctx).Raw(
		`INSERT INTO tenants (name, domain, plan, is_active, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, created_at, updated_at`,
		t.Name, t.Domain, t.Plan, t.IsActive, t.IsDefault, now, now).Row()

	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrDomainTaken
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	var t tenant.Tenant
	row := r.db.WithContext(ctx).Raw(
		`SELECT id, name, domain, plan, is_active, is_default, created_at, updated_at
		 FROM tenants WHERE id = ?`, id).Row()
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.IsActive, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) List(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, domain, plan, is_active, is_default, created_at, updated_at
		 FROM tenants ORDER BY id`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.IsActive, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE tenants SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
