// Package memory keeps users, courses and ownerships in process memory with
// the same constraints as the PostgreSQL schema. It backs `server --memory`
// and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qenty/academy/internal/store"
	"github.com/qenty/academy/types"
)

type ownershipKey struct {
	userID   int
	courseID int
}

// Store holds every table behind one lock so cross-table constraints hold.
type Store struct {
	mu         sync.RWMutex
	users      map[int]types.User
	emails     map[string]int
	courses    map[int]types.Course
	ownerships map[ownershipKey]time.Time
	nextUser   int
	nextCourse int
}

func New() *Store {
	return &Store{
		users:      make(map[int]types.User),
		emails:     make(map[string]int),
		courses:    make(map[int]types.Course),
		ownerships: make(map[ownershipKey]time.Time),
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Courses() *CourseRepository {
	return &CourseRepository{s: s}
}

func (s *Store) Ownerships() *OwnershipRepository {
	return &OwnershipRepository{s: s}
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.emails[user.Email]; taken {
		return types.User{}, store.ErrDuplicate
	}
	r.s.nextUser++
	user.ID = r.s.nextUser
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID
	return user, nil
}

type CourseRepository struct {
	s *Store
}

func (r *CourseRepository) List(ctx context.Context, limit int) ([]types.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	courses := make([]types.Course, 0, len(r.s.courses))
	for _, course := range r.s.courses {
		courses = append(courses, course)
	}
	sortCourses(courses)
	if limit > 0 && len(courses) > limit {
		courses = courses[:limit]
	}
	return courses, nil
}

func (r *CourseRepository) ListOwnedBy(ctx context.Context, userID int) ([]types.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	courses := make([]types.Course, 0)
	for key := range r.s.ownerships {
		if key.userID == userID {
			courses = append(courses, r.s.courses[key.courseID])
		}
	}
	sortCourses(courses)
	return courses, nil
}

func (r *CourseRepository) Get(ctx context.Context, id int) (types.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	course, ok := r.s.courses[id]
	if !ok {
		return types.Course{}, store.ErrNotFound
	}
	return course, nil
}

func (r *CourseRepository) Create(ctx context.Context, course types.Course) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextCourse++
	now := time.Now()
	course.ID = r.s.nextCourse
	course.CreatedAt = now
	course.UpdatedAt = now
	r.s.courses[course.ID] = course
	return course, nil
}

func (r *CourseRepository) Update(ctx context.Context, course types.Course) (types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.courses[course.ID]
	if !ok {
		return types.Course{}, store.ErrNotFound
	}
	course.CreatedAt = existing.CreatedAt
	course.UpdatedAt = time.Now()
	r.s.courses[course.ID] = course
	return course, nil
}

func (r *CourseRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.courses[id]; !ok {
		return store.ErrNotFound
	}
	for key := range r.s.ownerships {
		if key.courseID == id {
			return store.ErrReferenced
		}
	}
	delete(r.s.courses, id)
	return nil
}

type OwnershipRepository struct {
	s *Store
}

func (r *OwnershipRepository) Exists(ctx context.Context, userID, courseID int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.ownerships[ownershipKey{userID: userID, courseID: courseID}]
	return ok, nil
}

func (r *OwnershipRepository) Create(ctx context.Context, userID, courseID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return false, store.ErrNotFound
	}
	if _, ok := r.s.courses[courseID]; !ok {
		return false, store.ErrNotFound
	}
	key := ownershipKey{userID: userID, courseID: courseID}
	if _, ok := r.s.ownerships[key]; ok {
		return false, nil
	}
	r.s.ownerships[key] = time.Now()
	return true, nil
}

func (r *OwnershipRepository) ListLearners(ctx context.Context) ([]types.LearnerCourses, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byUser := make(map[int][]types.Course)
	for key := range r.s.ownerships {
		user := r.s.users[key.userID]
		if user.IsAdmin {
			continue
		}
		byUser[key.userID] = append(byUser[key.userID], r.s.courses[key.courseID])
	}

	learners := make([]types.LearnerCourses, 0, len(byUser))
	for userID, courses := range byUser {
		sortCourses(courses)
		user := r.s.users[userID]
		user.PasswordHash = ""
		learners = append(learners, types.LearnerCourses{User: user, Courses: courses})
	}
	sort.Slice(learners, func(i, j int) bool {
		return learners[i].User.ID < learners[j].User.ID
	})
	return learners, nil
}

func sortCourses(courses []types.Course) {
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].ID < courses[j].ID
	})
}
