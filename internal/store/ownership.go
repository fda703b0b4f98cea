package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/qenty/academy/types"
)

// OwnershipRepository handles the users × courses join table.
type OwnershipRepository struct {
	db *sql.DB
}

func NewOwnershipRepository(db *sql.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

func (r *OwnershipRepository) Exists(ctx context.Context, userID, courseID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM ownerships WHERE user_id = $1 AND course_id = $2
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create records the pair and reports whether a new row was inserted.
// An existing pair is left untouched.
func (r *OwnershipRepository) Create(ctx context.Context, userID, courseID int) (bool, error) {
	const query = `
		INSERT INTO ownerships (user_id, course_id, acquired_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, userID, courseID, time.Now())
	if err != nil {
		if hasPQCode(err, pqForeignKeyViolation) {
			return false, ErrNotFound
		}
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListLearners returns every non-admin user that owns at least one course,
// with their courses, ordered by user id then course id.
func (r *OwnershipRepository) ListLearners(ctx context.Context) ([]types.LearnerCourses, error) {
	const query = `
		SELECT u.id, u.name, u.email, u.is_admin, u.created_at,
			c.id, c.name, c.price, c.description, c.icon, c.video_ref, c.cover_key, c.created_at, c.updated_at
		FROM ownerships o
		JOIN users u ON u.id = o.user_id
		JOIN courses c ON c.id = o.course_id
		WHERE u.is_admin = FALSE
		ORDER BY u.id, c.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	learners := make([]types.LearnerCourses, 0)
	for rows.Next() {
		var user types.User
		var course types.Course
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.IsAdmin,
			&user.CreatedAt,
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

		last := len(learners) - 1
		if last < 0 || learners[last].User.ID != user.ID {
			learners = append(learners, types.LearnerCourses{User: user})
			last++
		}
		learners[last].Courses = append(learners[last].Courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return learners, nil
}
