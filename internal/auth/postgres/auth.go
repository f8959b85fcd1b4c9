package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/auth"
)

// Repository is the credential store accessor: it serves the user and
// tenant rows auth decisions re-read on every request.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, name, password_hash, role, tenant_id, is_active, is_internal,
	supported_tenant_ids, last_login_at, created_at, updated_at`

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id).Row()
	return scanUser(row)
}

// GetUserWithTenantByEmail loads the user and their tenant in a single read,
// which is all a login decision needs.
func (r *Repository) GetUserWithTenantByEmail(ctx context.Context, email string) (*auth.User, *auth.Tenant, error) {
	query := `SELECT u.id, u.email, u.name, u.password_hash, u.role, u.tenant_id, u.is_active, u.is_internal,
			u.supported_tenant_ids, u.last_login_at, u.created_at, u.updated_at,
			t.id, t.name, t.domain, t.plan, t.is_active
		FROM users u
		LEFT JOIN tenants t ON t.id = u.tenant_id
		WHERE u.email = ?`

	row := r.db.WithContext(ctx).Raw(query, email).Row()

	var (
		u            auth.User
		name         sql.NullString
		tenantID     sql.NullInt64
		supportedRaw []byte
		lastLogin    sql.NullTime

		tID       sql.NullInt64
		tName     sql.NullString
		tDomain   sql.NullString
		tPlan     sql.NullString
		tIsActive sql.NullBool
	)

	var role string
	err := row.Scan(
		&u.ID, &u.Email, &name, &u.PasswordHash, &role, &tenantID, &u.IsActive, &u.IsInternal,
		&supportedRaw, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
		&tID, &tName, &tDomain, &tPlan, &tIsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, auth.ErrUserNotFound
		}
		return nil, nil, err
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
			return nil, nil, err
		}
	}

	var tenant *auth.Tenant
	if tID.Valid {
		tenant = &auth.Tenant{
			ID:       tID.Int64,
			Name:     tName.String,
			Domain:   tDomain.String,
			Plan:     tPlan.String,
			IsActive: tIsActive.Bool,
		}
	}

	return &u, tenant, nil
}

func (r *Repository) GetTenantByID(ctx context.Context, id int64) (*auth.Tenant, error) {
	var t auth.Tenant
	row := r.db.WithContext(ctx).Raw(
		`SELECT id, name, domain, plan, is_active FROM tenants WHERE id = ?`, id).Row()
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrTenantInactive
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetDefaultTenant(ctx context.Context) (*auth.Tenant, error) {
	var t auth.Tenant
	row := r.db.WithContext(ctx).Raw(
		`SELECT id, name, domain, plan, is_active FROM tenants WHERE is_default = true LIMIT 1`).Row()
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrTenantInactive
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) CreateUser(ctx context.Context, u *auth.User) error {
	now := time.Now()
	row := r.db.WithContext(ctx).Raw(
		`INSERT INTO users (email, name, password_hash, role, tenant_id, is_active, is_internal, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		u.Email, u.Name, u.PasswordHash, string(u.Role), u.TenantID, u.IsActive, u.IsInternal, now, now).Row()

	if err := row.Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, time.Now(), userID).Error
}

func (r *Repository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`, at, time.Now(), userID).Error
}

func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (*auth.Invitation, error) {
	var (
		inv      auth.Invitation
		role     string
		accepted sql.NullTime
	)
	row := r.db.WithContext(ctx).Raw(
		`SELECT id, token, email, tenant_id, role, expires_at, accepted_at
		 FROM invitations WHERE token = ?`, token).Row()
	if err := row.Scan(&inv.ID, &inv.Token, &inv.Email, &inv.TenantID, &role, &inv.ExpiresAt, &accepted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrInvitationInvalid
		}
		return nil, err
	}
	inv.Role = auth.Role(role)
	if accepted.Valid {
		t := accepted.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}

// ConsumeInvitation marks the invitation accepted. The accepted_at guard in
// the WHERE clause makes acceptance exactly-once under concurrency.
func (r *Repository) ConsumeInvitation(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE invitations SET accepted_at = ? WHERE id = ? AND accepted_at IS NULL`, at, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u            auth.User
		name         sql.NullString
		role         string
		tenantID     sql.NullInt64
		supportedRaw []byte
		lastLogin    sql.NullTime
	)

	err := row.Scan(
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

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
