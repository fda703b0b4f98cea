package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestOwnershipRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOwnershipRepository(db)

	insert := `(?s)INSERT\s+INTO\s+ownerships.*ON\s+CONFLICT\s+\(user_id,\s*course_id\)\s+DO\s+NOTHING`
	mock.ExpectExec(insert).WithArgs(3, 1, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(3, 1, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Create(context.Background(), 3, 1)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.Create(context.Background(), 3, 1)
	require.NoError(t, err)
	require.False(t, inserted)
}

func TestOwnershipRepositoryExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOwnershipRepository(db)

	mock.ExpectQuery(`(?s)SELECT\s+EXISTS`).
		WithArgs(3, 2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), 3, 2)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestOwnershipRepositoryListLearnersGroupsByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOwnershipRepository(db)
	now := time.Now()

	columns := []string{
		"u.id", "u.name", "u.email", "u.is_admin", "u.created_at",
		"c.id", "c.name", "c.price", "c.description", "c.icon", "c.video_ref", "c.cover_key", "c.created_at", "c.updated_at",
	}
	mock.ExpectQuery(`(?s)FROM\s+ownerships\s+o.*WHERE\s+u\.is_admin\s*=\s*FALSE\s+ORDER\s+BY\s+u\.id,\s*c\.id`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(2, "Ana", "ana@x.com", false, now, 1, "Tarot Evolutivo", int64(45000), "", "", "", "", now, now).
			AddRow(2, "Ana", "ana@x.com", false, now, 2, "Runas", int64(38000), "", "", "", "", now, now).
			AddRow(5, "Leo", "leo@x.com", false, now, 2, "Runas", int64(38000), "", "", "", "", now, now))

	learners, err := repo.ListLearners(context.Background())
	require.NoError(t, err)
	require.Len(t, learners, 2)
	require.Equal(t, "ana@x.com", learners[0].User.Email)
	require.Len(t, learners[0].Courses, 2)
	require.Len(t, learners[1].Courses, 1)
}
