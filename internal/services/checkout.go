package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/internal/metrics"
	"github.com/qenty/academy/internal/payment"
	"github.com/qenty/academy/types"
)

// PaymentGateway creates hosted checkout sessions.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, pref payment.Preference) (string, error)
}

// EventPublisher is the subset of the message queue used to announce purchases.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// CheckoutResult tells the caller where to send the buyer.
type CheckoutResult struct {
	RedirectURL  string
	AlreadyOwned bool
}

// Confirmation is the outcome of an approved payment callback.
type Confirmation struct {
	Course  types.Course
	Granted bool
}

// CheckoutService drives purchases through the payment processor.
type CheckoutService struct {
	courses    *CourseService
	ownerships OwnershipRepository
	gateway    PaymentGateway
	publisher  EventPublisher
	channel    string
	baseURL    string
	currency   string
	logger     logrus.FieldLogger
}

type CheckoutOption func(*CheckoutService)

// WithPurchaseEvents publishes a PurchaseEvent on channel for every new ownership.
func WithPurchaseEvents(publisher EventPublisher, channel string) CheckoutOption {
	return func(s *CheckoutService) {
		s.publisher = publisher
		s.channel = channel
	}
}

func NewCheckoutService(
	courses *CourseService,
	ownerships OwnershipRepository,
	gateway PaymentGateway,
	baseURL string,
	currency string,
	logger logrus.FieldLogger,
	opts ...CheckoutOption,
) *CheckoutService {
	s := &CheckoutService{
		courses:    courses,
		ownerships: ownerships,
		gateway:    gateway,
		baseURL:    baseURL,
		currency:   currency,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a checkout session for courseID. Buyers who can already access
// the course get AlreadyOwned instead of a processor call.
func (s *CheckoutService) Start(ctx context.Context, actor types.Actor, courseID int) (CheckoutResult, error) {
	if !actor.IsAuthenticated() {
		return CheckoutResult{}, ErrAccessDenied
	}
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return CheckoutResult{}, err
	}

	owned, err := s.courses.CanAccess(ctx, actor, course)
	if err != nil {
		return CheckoutResult{}, err
	}
	if owned {
		return CheckoutResult{AlreadyOwned: true}, nil
	}

	id := strconv.Itoa(course.ID)
	url, err := s.gateway.CreatePreference(ctx, payment.Preference{
		Items: []payment.Item{{
			Title:      course.Name,
			Quantity:   1,
			UnitPrice:  course.Price,
			CurrencyID: s.currency,
		}},
		BackURLs: payment.BackURLs{
			Success: s.baseURL + "/pago-exitoso/" + id,
			Failure: s.baseURL + "/pago-fallido/" + id,
			Pending: s.baseURL + "/pago-pendiente/" + id,
		},
		AutoReturn:        "approved",
		ExternalReference: fmt.Sprintf("%d:%d", actor.User.ID, course.ID),
	})
	if err != nil {
		metrics.CheckoutFailuresTotal.Inc()
		return CheckoutResult{}, fmt.Errorf("%w: %w", ErrPaymentProcessor, err)
	}
	return CheckoutResult{RedirectURL: url}, nil
}

// Confirm grants courseID to the actor on the approved callback. Repeated
// confirmations leave the single ownership row untouched.
func (s *CheckoutService) Confirm(ctx context.Context, actor types.Actor, courseID int) (Confirmation, error) {
	if !actor.IsAuthenticated() {
		return Confirmation{}, ErrAccessDenied
	}
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return Confirmation{}, err
	}

	inserted, err := s.ownerships.Create(ctx, actor.User.ID, course.ID)
	if err != nil {
		return Confirmation{}, mapStoreError(err)
	}
	if inserted {
		metrics.PurchasesTotal.WithLabelValues(strconv.Itoa(course.ID)).Inc()
		s.publishPurchase(ctx, actor.User, course)
	}
	return Confirmation{Course: course, Granted: inserted}, nil
}

func (s *CheckoutService) publishPurchase(ctx context.Context, user types.User, course types.Course) {
	if s.publisher == nil {
		return
	}
	event := types.PurchaseEvent{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		UserEmail:   user.Email,
		CourseID:    course.ID,
		CourseName:  course.Name,
		Price:       course.Price,
		Currency:    s.currency,
		PurchasedAt: time.Now().UTC(),
	}
	logger := s.logger.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"user_id":   user.ID,
		"course_id": course.ID,
	})

	data, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Error("failed to encode purchase event")
		return
	}
	_, err = s.publisher.Publish(ctx, s.channel, data, map[string]string{"type": "purchase"})
	metrics.RecordMessage(s.channel, "publish", err)
	if err != nil {
		logger.WithError(err).Error("failed to publish purchase event")
	}
}
