package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/impersonation"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, s *impersonation.Session) error {
	row := r.db.WithContext(ctx).Raw(
		`INSERT INTO impersonation_sessions (token, actor_id, target_id, tenant_id, reason, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, created_at`,
		s.Token, s.ActorID, s.TargetID, s.TenantID, s.Reason, s.ExpiresAt, time.Now()).Row()
	return row.Scan(&s.ID, &s.CreatedAt)
}

func (r *Repository) GetByToken(ctx context.Context, token string) (*impersonation.Session, error) {
	var (
		s        impersonation.Session
		tenantID sql.NullInt64
		endedAt  sql.NullTime
	)
	row := r.db.WithContext(ctx).Raw(
		`SELECT id, token, actor_id, target_id, tenant_id, reason, expires_at, ended_at, created_at
		 FROM impersonation_sessions WHERE token = ?`, token).Row()
	err := row.Scan(&s.ID, &s.Token, &s.ActorID, &s.TargetID, &tenantID, &s.Reason, &s.ExpiresAt, &endedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, impersonation.ErrNotFound
		}
		return nil, err
	}
	if tenantID.Valid {
		s.TenantID = &tenantID.Int64
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}

// End stamps ended_at once. The IS NULL guard keeps repeat calls from
// rewriting the original end time.
func (r *Repository) End(ctx context.Context, token string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE impersonation_sessions SET ended_at = ? WHERE token = ? AND ended_at IS NULL`, at, token)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) ListByActor(ctx context.Context, actorID int64) ([]impersonation.Session, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT id, token, actor_id, target_id, tenant_id, reason, expires_at, ended_at, created_at
		 FROM impersonation_sessions WHERE actor_id = ? ORDER BY created_at DESC`, actorID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []impersonation.Session
	for rows.Next() {
		var (
			s        impersonation.Session
			tenantID sql.NullInt64
			endedAt  sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Token, &s.ActorID, &s.TargetID, &tenantID, &s.Reason, &s.ExpiresAt, &endedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		if tenantID.Valid {
			s.TenantID = &tenantID.Int64
		}
		if endedAt.Valid {
			t := endedAt.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
