package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/auth"
	"github.com/courseloom/platform/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, name, password_hash, role, tenant_id, is_active, is_internal,
	supported_tenant_ids, last_login_at, created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id).Row()
	u, err := scanUser(row)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, user.ErrNotFound
	}
	return u, err
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID int64) ([]auth.User, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? ORDER BY id`, tenantID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *Repository) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), time.Now(), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*auth.User, error) {
	return scanInto(row)
}

func scanUserRows(rows *sql.Rows) (*auth.User, error) {
	return scanInto(rows)
}

func scanInto(s rowScanner) (*auth.User, error) {
	var (
		u            auth.User
		name         sql.NullString
		role         string
		tenantID     sql.NullInt64
		supportedRaw []byte
		lastLogin    sql.NullTime
	)

	err := s.Scan(
		&u.ID, &u.Email, &name, &u.PasswordHash, &role, &tenantID, &u.IsActive, &u.IsInternal,
		&supportedRaw, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	u.Role = auth.Role(role)
	u.Name = name.String
	if tenantID.Valid {
		u.TenantID = &tenantID.Int64
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	if len(supportedRaw) > 0 {
		if err := json.Unmarshal(supportedRaw, &u.SupportedTenantIDs); err != nil {
			return nil, err
		}
	}

	return &u, nil
}
