package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/internal/storage"
	"github.com/qenty/academy/types"
)

const coverPrefix = "courses/covers/"

// CourseRepository defines persistence operations for courses.
type CourseRepository interface {
	List(ctx context.Context, limit int) ([]types.Course, error)
	ListOwnedBy(ctx context.Context, userID int) ([]types.Course, error)
	Get(ctx context.Context, id int) (types.Course, error)
	Create(ctx context.Context, course types.Course) (types.Course, error)
	Update(ctx context.Context, course types.Course) (types.Course, error)
	Delete(ctx context.Context, id int) error
}

// OwnershipRepository defines persistence operations for purchases.
type OwnershipRepository interface {
	Exists(ctx context.Context, userID, courseID int) (bool, error)
	Create(ctx context.Context, userID, courseID int) (bool, error)
	ListLearners(ctx context.Context) ([]types.LearnerCourses, error)
}

// CourseInput carries the editable fields of a course.
type CourseInput struct {
	Name        string
	Price       int64
	Description string
	Icon        string
	VideoRef    string
}

// Cover is an uploaded cover image.
type Cover struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CourseService encapsulates catalog and access use-cases.
type CourseService struct {
	repo       CourseRepository
	ownerships OwnershipRepository
	storage    *storage.Storage
	logger     logrus.FieldLogger
}

// NewCourseService builds the service. objects may be nil when no object
// storage backend is configured; cover uploads are then rejected.
func NewCourseService(repo CourseRepository, ownerships OwnershipRepository, objects *storage.Storage, logger logrus.FieldLogger) *CourseService {
	return &CourseService{
		repo:       repo,
		ownerships: ownerships,
		storage:    objects,
		logger:     logger,
	}
}

func (s *CourseService) List(ctx context.Context) ([]types.Course, error) {
	return s.repo.List(ctx, 0)
}

// Featured returns the first n courses of the catalog.
func (s *CourseService) Featured(ctx context.Context, n int) ([]types.Course, error) {
	if n < 1 {
		return []types.Course{}, nil
	}
	return s.repo.List(ctx, n)
}

func (s *CourseService) Get(ctx context.Context, id int) (types.Course, error) {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Course{}, mapStoreError(err)
	}
	return course, nil
}

// CanAccess reports whether actor may open the classroom of course.
func (s *CourseService) CanAccess(ctx context.Context, actor types.Actor, course types.Course) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	return s.ownerships.Exists(ctx, actor.User.ID, course.ID)
}

// OwnedCourses lists the learner dashboard. Administrators see the whole catalog.
func (s *CourseService) OwnedCourses(ctx context.Context, actor types.Actor) ([]types.Course, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAccessDenied
	}
	if actor.IsAdmin() {
		return s.repo.List(ctx, 0)
	}
	return s.repo.ListOwnedBy(ctx, actor.User.ID)
}

// Create validates input, uploads the optional cover and inserts the course.
// Nothing is written when validation fails.
func (s *CourseService) Create(ctx context.Context, input CourseInput, cover *Cover) (types.Course, error) {
	course, err := courseFromInput(input)
	if err != nil {
		return types.Course{}, err
	}
	if cover != nil {
		key, err := s.putCover(ctx, cover)
		if err != nil {
			return types.Course{}, err
		}
		course.CoverKey = key
	}

	created, err := s.repo.Create(ctx, course)
	if err != nil {
		s.removeCover(ctx, course.CoverKey)
		return types.Course{}, err
	}
	return created, nil
}

// Update overwrites every editable field. The current cover is kept unless a
// new one is uploaded.
func (s *CourseService) Update(ctx context.Context, id int, input CourseInput, cover *Cover) (types.Course, error) {
	course, err := courseFromInput(input)
	if err != nil {
		return types.Course{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Course{}, err
	}
	course.ID = id
	course.CoverKey = current.CoverKey

	if cover != nil {
		key, err := s.putCover(ctx, cover)
		if err != nil {
			return types.Course{}, err
		}
		course.CoverKey = key
	}

	updated, err := s.repo.Update(ctx, course)
	if err != nil {
		if course.CoverKey != current.CoverKey {
			s.removeCover(ctx, course.CoverKey)
		}
		return types.Course{}, mapStoreError(err)
	}
	if updated.CoverKey != current.CoverKey {
		s.removeCover(ctx, current.CoverKey)
	}
	return updated, nil
}

// Delete removes a course nobody owns.
func (s *CourseService) Delete(ctx context.Context, id int) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	s.removeCover(ctx, course.CoverKey)
	return nil
}

// OpenCover streams a stored cover image.
func (s *CourseService) OpenCover(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if !strings.HasPrefix(key, coverPrefix) || strings.Contains(key, "..") {
		return nil, ErrNotFound
	}
	return s.storage.Get(ctx, key)
}

func (s *CourseService) putCover(ctx context.Context, cover *Cover) (string, error) {
	if s.storage == nil {
		return "", ErrStorageDisabled
	}
	key := coverPrefix + uuid.NewString() + strings.ToLower(path.Ext(cover.Filename))
	if err := s.storage.Put(ctx, key, cover.Body, cover.Size, cover.ContentType); err != nil {
		return "", fmt.Errorf("upload cover: %w", err)
	}
	return key, nil
}

func (s *CourseService) removeCover(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to remove cover")
	}
}

func courseFromInput(input CourseInput) (types.Course, error) {
	course := types.Course{
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Description: strings.TrimSpace(input.Description),
		Icon:        strings.TrimSpace(input.Icon),
		VideoRef:    strings.TrimSpace(input.VideoRef),
	}
	if course.Name == "" {
		return types.Course{}, fmt.Errorf("%w: name is required", ErrInvalidCourse)
	}
	if course.Price < 0 {
		return types.Course{}, fmt.Errorf("%w: price must not be negative", ErrInvalidCourse)
	}
	return course, nil
}
