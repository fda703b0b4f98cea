package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qenty/academy/config"
	"github.com/qenty/academy/internal/logging"
	"github.com/qenty/academy/internal/payment"
	"github.com/qenty/academy/internal/storage"
	"github.com/qenty/academy/internal/store/memory"
	"github.com/qenty/academy/types"
)

type fakeGateway struct {
	url   string
	err   error
	calls []payment.Preference
}

func (g *fakeGateway) CreatePreference(ctx context.Context, pref payment.Preference) (string, error) {
	g.calls = append(g.calls, pref)
	return g.url, g.err
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	channels []string
	events   []types.PurchaseEvent
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var event types.PurchaseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.channels = append(p.channels, channel)
	p.events = append(p.events, event)
	return event.ID, p.err
}

type fixture struct {
	store     *memory.Store
	objects   *storage.MemoryBackend
	users     *UserService
	courses   *CourseService
	checkout  *CheckoutService
	reports   *ReportService
	gateway   *fakeGateway
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	objects := storage.NewMemoryBackend()
	logger := logging.Discard()

	users := NewUserService(s.Users())
	users.hashCost = bcrypt.MinCost
	courses := NewCourseService(s.Courses(), s.Ownerships(), storage.NewStorage(objects), logger)
	gateway := &fakeGateway{url: "https://pay.example/checkout/1"}
	publisher := &fakePublisher{}
	checkout := NewCheckoutService(courses, s.Ownerships(), gateway, "http://localhost:8080", "ARS", logger,
		WithPurchaseEvents(publisher, "course-purchases"))

	return &fixture{
		store:     s,
		objects:   objects,
		users:     users,
		courses:   courses,
		checkout:  checkout,
		reports:   NewReportService(s.Ownerships()),
		gateway:   gateway,
		publisher: publisher,
	}
}

func (f *fixture) learner(t *testing.T, email string) types.Actor {
	t.Helper()
	user, err := f.users.Register(context.Background(), "Learner", email, "pw123")
	require.NoError(t, err)
	return types.ActorFor(user)
}

func (f *fixture) admin(t *testing.T) types.Actor {
	t.Helper()
	_, err := f.users.EnsureAdmin(context.Background(), "Administrador", "admin@qenty.com", "admin123")
	require.NoError(t, err)
	user, err := f.users.Authenticate(context.Background(), "admin@qenty.com", "admin123")
	require.NoError(t, err)
	return types.ActorFor(user)
}

func (f *fixture) course(t *testing.T, name string, price int64) types.Course {
	t.Helper()
	course, err := f.courses.Create(context.Background(), CourseInput{Name: name, Price: price}, nil)
	require.NoError(t, err)
	return course
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "Ana", "ana@x.com", "pw123")
	require.NoError(t, err)
	require.Equal(t, "ana@x.com", user.Email)
	require.False(t, user.IsAdmin)
	require.NotEqual(t, "pw123", user.PasswordHash)

	got, err := f.users.Authenticate(ctx, "ana@x.com", "pw123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "ana@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, "nobody@x.com", "pw123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "Ana", "ana@x.com", "pw123")
	require.NoError(t, err)
	_, err = f.users.Register(ctx, "Otra Ana", "ana@x.com", "other")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	// The first account keeps its password.
	_, err = f.users.Authenticate(ctx, "ana@x.com", "pw123")
	require.NoError(t, err)
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.users.Register(ctx, "Ana", "race@x.com", "pw123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrDuplicateEmail)
	}
	require.Equal(t, 1, succeeded)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.EnsureAdmin(ctx, "Administrador", "admin@qenty.com", "admin123")
	require.NoError(t, err)
	require.True(t, created)

	created, err = f.users.EnsureAdmin(ctx, "Administrador", "admin@qenty.com", "admin123")
	require.NoError(t, err)
	require.False(t, created)
}

func TestCanAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Tarot", 45000)
	ana := f.learner(t, "ana@x.com")
	admin := f.admin(t)

	ok, err := f.courses.CanAccess(ctx, types.Anonymous, course)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.courses.CanAccess(ctx, ana, course)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.courses.CanAccess(ctx, admin, course)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.checkout.Confirm(ctx, ana, course.ID)
	require.NoError(t, err)
	ok, err = f.courses.CanAccess(ctx, ana, course)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateCourseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.courses.Create(ctx, CourseInput{Name: "  ", Price: 100}, nil)
	require.ErrorIs(t, err, ErrInvalidCourse)
	_, err = f.courses.Create(ctx, CourseInput{Name: "Tarot", Price: -1}, nil)
	require.ErrorIs(t, err, ErrInvalidCourse)

	all, err := f.courses.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCourseCoverLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course, err := f.courses.Create(ctx, CourseInput{Name: "Tarot", Price: 45000},
		&Cover{Filename: "tarot.PNG", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(course.CoverKey, "courses/covers/"))
	require.True(t, strings.HasSuffix(course.CoverKey, ".png"))

	rc, err := f.courses.OpenCover(ctx, course.CoverKey)
	require.NoError(t, err)
	rc.Close()

	updated, err := f.courses.Update(ctx, course.ID, CourseInput{Name: "Tarot II", Price: 46000},
		&Cover{Filename: "new.jpg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")})
	require.NoError(t, err)
	require.NotEqual(t, course.CoverKey, updated.CoverKey)
	require.Equal(t, []string{updated.CoverKey}, f.objects.Keys())

	require.NoError(t, f.courses.Delete(ctx, course.ID))
	require.Empty(t, f.objects.Keys())

	_, err = f.courses.OpenCover(ctx, "receipts/1/x.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCoverWithoutStorage(t *testing.T) {
	s := memory.New()
	courses := NewCourseService(s.Courses(), s.Ownerships(), nil, logging.Discard())

	_, err := courses.Create(context.Background(), CourseInput{Name: "Tarot", Price: 1},
		&Cover{Filename: "a.png", Body: strings.NewReader("x"), Size: 1})
	require.ErrorIs(t, err, ErrStorageDisabled)

	all, err := courses.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestUpdateKeepsCoverAndReportsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.courses.Update(ctx, 404, CourseInput{Name: "x"}, nil)
	require.ErrorIs(t, err, ErrNotFound)

	course, err := f.courses.Create(ctx, CourseInput{Name: "Tarot", Price: 45000, Icon: "🔮"},
		&Cover{Filename: "a.png", Body: strings.NewReader("x"), Size: 1})
	require.NoError(t, err)

	updated, err := f.courses.Update(ctx, course.ID, CourseInput{Name: "Tarot", Price: 50000, VideoRef: "abc"}, nil)
	require.NoError(t, err)
	require.Equal(t, course.CoverKey, updated.CoverKey)
	require.Equal(t, int64(50000), updated.Price)
	require.Empty(t, updated.Icon)
}

func TestDeleteCourseWithOwnersIsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Tarot", 45000)
	ana := f.learner(t, "ana@x.com")

	_, err := f.checkout.Confirm(ctx, ana, course.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.courses.Delete(ctx, course.ID), ErrCourseHasOwners)
	_, err = f.courses.Get(ctx, course.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.courses.Delete(ctx, 999), ErrNotFound)
}

func TestOwnedCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tarot := f.course(t, "Tarot", 45000)
	f.course(t, "Runas", 38000)
	ana := f.learner(t, "ana@x.com")

	_, err := f.courses.OwnedCourses(ctx, types.Anonymous)
	require.ErrorIs(t, err, ErrAccessDenied)

	owned, err := f.courses.OwnedCourses(ctx, ana)
	require.NoError(t, err)
	require.Empty(t, owned)

	_, err = f.checkout.Confirm(ctx, ana, tarot.ID)
	require.NoError(t, err)
	owned, err = f.courses.OwnedCourses(ctx, ana)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	all, err := f.courses.OwnedCourses(ctx, f.admin(t))
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStartCheckoutBuildsPreference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Tarot Evolutivo", 45000)
	ana := f.learner(t, "ana@x.com")

	result, err := f.checkout.Start(ctx, ana, course.ID)
	require.NoError(t, err)
	require.False(t, result.AlreadyOwned)
	require.Equal(t, "https://pay.example/checkout/1", result.RedirectURL)

	require.Len(t, f.gateway.calls, 1)
	pref := f.gateway.calls[0]
	require.Equal(t, []payment.Item{{Title: "Tarot Evolutivo", Quantity: 1, UnitPrice: 45000, CurrencyID: "ARS"}}, pref.Items)
	require.Equal(t, "http://localhost:8080/pago-exitoso/1", pref.BackURLs.Success)
	require.Equal(t, "http://localhost:8080/pago-fallido/1", pref.BackURLs.Failure)
	require.Equal(t, "http://localhost:8080/pago-pendiente/1", pref.BackURLs.Pending)
	require.Equal(t, "approved", pref.AutoReturn)
	require.Equal(t, "1:1", pref.ExternalReference)
}

func TestStartCheckoutShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Tarot", 45000)
	ana := f.learner(t, "ana@x.com")

	_, err := f.checkout.Start(ctx, types.Anonymous, course.ID)
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.checkout.Start(ctx, ana, 999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.checkout.Confirm(ctx, ana, course.ID)
	require.NoError(t, err)
	result, err := f.checkout.Start(ctx, ana, course.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyOwned)

	result, err = f.checkout.Start(ctx, f.admin(t), course.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyOwned)
	require.Empty(t, f.gateway.calls)
}

func TestStartCheckoutProcessorFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("connection refused")
	course := f.course(t, "Tarot", 45000)

	_, err := f.checkout.Start(context.Background(), f.learner(t, "ana@x.com"), course.ID)
	require.ErrorIs(t, err, ErrPaymentProcessor)
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "Tarot", 45000)
	ana := f.learner(t, "ana@x.com")

	first, err := f.checkout.Confirm(ctx, ana, course.ID)
	require.NoError(t, err)
	require.True(t, first.Granted)
	second, err := f.checkout.Confirm(ctx, ana, course.ID)
	require.NoError(t, err)
	require.False(t, second.Granted)

	report, err := f.reports.Revenue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(45000), report.Total)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	require.Equal(t, "course-purchases", f.publisher.channels[0])
	require.Equal(t, ana.User.ID, event.UserID)
	require.Equal(t, "ana@x.com", event.UserEmail)
	require.Equal(t, int64(45000), event.Price)
	require.Equal(t, "ARS", event.Currency)
	require.NotEmpty(t, event.ID)
}

func TestConfirmSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	course := f.course(t, "Tarot", 45000)

	confirmation, err := f.checkout.Confirm(context.Background(), f.learner(t, "ana@x.com"), course.ID)
	require.NoError(t, err)
	require.True(t, confirmation.Granted)
}

func TestConfirmUnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout.Confirm(context.Background(), f.learner(t, "ana@x.com"), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevenueReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tarot := f.course(t, "Tarot Evolutivo", 45000)
	runas := f.course(t, "Runas Nórdicas y Egipcias", 38000)
	ana := f.learner(t, "ana@x.com")
	admin := f.admin(t)

	for _, id := range []int{tarot.ID, runas.ID} {
		_, err := f.checkout.Confirm(ctx, ana, id)
		require.NoError(t, err)
	}
	_, err := f.checkout.Confirm(ctx, admin, tarot.ID)
	require.NoError(t, err)

	report, err := f.reports.Revenue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(83000), report.Total)
	require.Len(t, report.Learners, 1)
	require.Equal(t, "ana@x.com", report.Learners[0].User.Email)
	require.Len(t, report.Learners[0].Courses, 2)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := config.AdminConfig{Name: "Administrador", Email: "admin@qenty.com", Password: "admin123"}

	require.NoError(t, Seed(ctx, f.users, f.courses, admin, logging.Discard()))
	require.NoError(t, Seed(ctx, f.users, f.courses, admin, logging.Discard()))

	all, err := f.courses.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(SampleCourses))
	require.Equal(t, "Tarot Evolutivo", all[0].Name)
	require.Equal(t, int64(45000), all[0].Price)

	user, err := f.users.Authenticate(ctx, "admin@qenty.com", "admin123")
	require.NoError(t, err)
	require.True(t, user.IsAdmin)

	featured, err := f.courses.Featured(ctx, 3)
	require.NoError(t, err)
	require.Len(t, featured, 3)
}

func TestSeedRequiresAdminPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, password := range []string{"", "   "} {
		admin := config.AdminConfig{Name: "Administrador", Email: "admin@qenty.com", Password: password}
		require.ErrorIs(t, Seed(ctx, f.users, f.courses, admin, logging.Discard()), ErrAdminPasswordRequired)
	}

	_, err := f.users.Authenticate(ctx, "admin@qenty.com", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	all, err := f.courses.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
