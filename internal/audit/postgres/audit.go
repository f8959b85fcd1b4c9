package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/audit"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, record *audit.Record) error {
	details := []byte("{}")
	if record.Details != nil {
		encoded, err := json.Marshal(record.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}

	query := `INSERT INTO audit_logs
		(id, tenant_id, user_id, actor_role, action, resource_type, resource_id, details, severity, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.db.WithContext(ctx).Exec(query,
		record.ID,
		record.TenantID,
		record.UserID,
		record.ActorRole,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		details,
		string(record.Severity),
		record.IPAddress,
		record.UserAgent,
		record.CreatedAt,
	).Error
}

func (r *Repository) ActorRole(ctx context.Context, userID int64) (string, error) {
	var role string
	row := r.db.WithContext(ctx).Raw(`SELECT role FROM users WHERE id = ?`, userID).Row()
	if err := row.Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("user not found")
		}
		return "", err
	}
	return role, nil
}
