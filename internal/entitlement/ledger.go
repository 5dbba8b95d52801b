package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"api_commerce/internal/records"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned when an operation that needs a caller identity gets none.
var ErrUnauthorized = errors.New("authentication required")

// ErrPaymentRequired is returned when a paid course is enrolled without a completed purchase.
var ErrPaymentRequired = errors.New("payment required")

var tracer = otel.Tracer("api_commerce/internal/entitlement")

// EnrollResult is the idempotent outcome of Enroll.
type EnrollResult string

const (
	Created       EnrollResult = "created"
	AlreadyExists EnrollResult = "already_exists"
)

// Store is the slice of records.Store the ledger and resolver read and write.
type Store interface {
	GetCourse(ctx context.Context, id string) (*records.Course, error)
	InsertEnrollment(ctx context.Context, e *records.Enrollment) error
	CountEnrollments(ctx context.Context, f records.EnrollmentFilter) (int64, error)
}

// Ledger creates enrollments. Enrollment is set membership: the store's unique index
// decides who wins a race, and losing it is success.
type Ledger struct {
	store    Store
	payments PaymentVerifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewLedger creates a ledger. A nil verifier means paid enrollment is not available yet.
func NewLedger(store Store, payments PaymentVerifier, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if payments == nil {
		payments = UnavailablePayments{}
	}
	return &Ledger{
		store:    store,
		payments: payments,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Enroll records that userID is enrolled in courseID. Calling it again, or concurrently,
// for the same pair returns AlreadyExists and leaves exactly one row.
func (l *Ledger) Enroll(ctx context.Context, userID, courseID string) (EnrollResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Enroll")
	defer span.End()
	span.SetAttributes(attribute.String("course.id", courseID))

	if userID == "" {
		return "", ErrUnauthorized
	}

	course, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return "", fmt.Errorf("course %s: %w", courseID, records.ErrNotFound)
		}
		l.logger.Error("failed to load course", zap.String("course_id", courseID), zap.Error(err))
		return "", fmt.Errorf("failed to load course: %w", err)
	}

	if !course.IsFree {
		if err := l.checkPayment(ctx, userID, courseID); err != nil {
			return "", err
		}
	}

	enrollment := &records.Enrollment{
		ID:        l.newID(),
		UserID:    userID,
		CourseID:  courseID,
		Progress:  0,
		CreatedAt: l.now(),
	}
	if err := l.store.InsertEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, records.ErrConstraintViolation) {
			l.logger.Debug("enrollment already exists",
				zap.String("user_id", userID),
				zap.String("course_id", courseID),
			)
			return AlreadyExists, nil
		}
		l.logger.Error("failed to save enrollment",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to save enrollment: %w", err)
	}

	l.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
	)
	return Created, nil
}

// IsEnrolled reports whether an enrollment row exists for the pair.
func (l *Ledger) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	n, err := l.store.CountEnrollments(ctx, records.EnrollmentFilter{
		UserID:    userID,
		CourseIDs: []string{courseID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return n > 0, nil
}

func (l *Ledger) checkPayment(ctx context.Context, userID, courseID string) error {
	paid, err := l.payments.HasCompletedPurchase(ctx, userID, courseID)
	switch {
	case errors.Is(err, ErrPaymentUnavailable):
		l.logger.Info("paid enrollment attempted while payments are unavailable",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
		)
		return errors.Join(ErrPaymentRequired, err)
	case err != nil:
		l.logger.Error("failed to verify payment", zap.String("course_id", courseID), zap.Error(err))
		return fmt.Errorf("failed to verify payment: %w", err)
	case !paid:
		return ErrPaymentRequired
	}
	return nil
}
