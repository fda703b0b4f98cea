package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/qenty/academy/types"
)

const courseColumns = `id, name, price, description, icon, video_ref, cover_key, created_at, updated_at`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses in insertion order. A limit below 1 returns every course.
func (r *CourseRepository) List(ctx context.Context, limit int) ([]types.Course, error) {
	query := `
		SELECT ` + courseColumns + `
		FROM courses
		ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += `
		LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCourses(rows)
}

// ListOwnedBy returns the courses the user acquired, in catalog order.
func (r *CourseRepository) ListOwnedBy(ctx context.Context, userID int) ([]types.Course, error) {
	const query = `
		SELECT c.id, c.name, c.price, c.description, c.icon, c.video_ref, c.cover_key, c.created_at, c.updated_at
		FROM courses c
		JOIN ownerships o ON o.course_id = c.id
		WHERE o.user_id = $1
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCourses(rows)
}

func (r *CourseRepository) Get(ctx context.Context, id int) (types.Course, error) {
	const query = `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE id = $1`
	var course types.Course
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&course.ID,
		&course.Name,
		&course.Price,
		&course.Description,
		&course.Icon,
		&course.VideoRef,
		&course.CoverKey,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, ErrNotFound
		}
		return types.Course{}, err
	}
	return course, nil
}

func (r *CourseRepository) Create(ctx context.Context, course types.Course) (types.Course, error) {
	now := time.Now()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `
		INSERT INTO courses (name, price, description, icon, video_ref, cover_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		course.Name,
		course.Price,
		course.Description,
		course.Icon,
		course.VideoRef,
		course.CoverKey,
		course.CreatedAt,
		course.UpdatedAt,
	).Scan(&course.ID); err != nil {
		return types.Course{}, err
	}
	return course, nil
}

// Update overwrites every editable column of the course.
func (r *CourseRepository) Update(ctx context.Context, course types.Course) (types.Course, error) {
	course.UpdatedAt = time.Now()

	const query = `
		UPDATE courses
		SET name = $1,
			price = $2,
			description = $3,
			icon = $4,
			video_ref = $5,
			cover_key = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		course.Name,
		course.Price,
		course.Description,
		course.Icon,
		course.VideoRef,
		course.CoverKey,
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return types.Course{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Course{}, err
	}
	if affected == 0 {
		return types.Course{}, ErrNotFound
	}
	return course, nil
}

// Delete removes the course. Courses with owners are protected by the
// ownerships foreign key and yield ErrReferenced.
func (r *CourseRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM courses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if hasPQCode(err, pqForeignKeyViolation) {
			return ErrReferenced
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCourses(rows *sql.Rows) ([]types.Course, error) {
	courses := make([]types.Course, 0)
	for rows.Next() {
		var course types.Course
		if err := rows.Scan(
			&course.ID,
			&course.Name,
			&course.Price,
			&course.Description,
			&course.Icon,
			&course.VideoRef,
			&course.CoverKey,
			&course.CreatedAt,
			&course.UpdatedAt,
		); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return courses, nil
}
