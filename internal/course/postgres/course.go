package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/platform/internal/course"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const courseColumns = `id, tenant_id, title, description, created_by, is_published, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, c *course.Course) error {
	now := time.Now()
	row := r.db.WithContext(ctx).Raw(
		`INSERT INTO courses (tenant_id, title, description, created_by, is_published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, created_at, updated_at`,
		c.TenantID, c.Title, c.Description, c.CreatedBy, c.IsPublished, now, now).Row()
	return row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*course.Course, error) {
	var c course.Course
	row := r.db.WithContext(ctx).Raw(
		`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id).Row()
	err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.Description, &c.CreatedBy, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, course.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID int64) ([]course.Course, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT `+courseColumns+` FROM courses WHERE tenant_id = ? ORDER BY id`, tenantID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []course.Course
	for rows.Next() {
		var c course.Course
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Title, &c.Description, &c.CreatedBy, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *Repository) Update(ctx context.Context, c *course.Course) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE courses SET title = ?, description = ?, is_published = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.Description, c.IsPublished, time.Now(), c.ID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM courses WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
