package entitlement

import (
	"context"
	"errors"
	"fmt"

	"api_commerce/internal/records"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reason explains an Access decision.
type Reason string

const (
	// ReasonFree is reserved for granting free courses without an enrollment.
	// Free courses currently require an explicit enroll, so the resolver never returns it.
	ReasonFree           Reason = "free"
	ReasonEnrolled       Reason = "enrolled"
	ReasonNotEnrolled    Reason = "not_enrolled"
	ReasonCourseNotFound Reason = "course_not_found"
)

// Access is the entitlement decision for one learner and one course.
// Free is set when the course costs nothing, so a denied caller can offer a one-click enroll.
type Access struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
	Free    bool   `json:"free"`
}

func Granted(reason Reason) Access { return Access{Granted: true, Reason: reason} }

func Denied(reason Reason) Access { return Access{Granted: false, Reason: reason} }

// CourseReader loads a course by id.
type CourseReader interface {
	GetCourse(ctx context.Context, id string) (*records.Course, error)
}

// Resolver decides whether a learner may see a course's content. It never writes.
type Resolver struct {
	courses CourseReader
	ledger  *Ledger
	logger  *zap.Logger
}

func NewResolver(courses CourseReader, ledger *Ledger, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{courses: courses, ledger: ledger, logger: logger}
}

// CheckAccess grants access only when an enrollment row exists, for free and paid courses alike.
// An unknown course yields Denied(course_not_found) together with an error wrapping records.ErrNotFound.
func (r *Resolver) CheckAccess(ctx context.Context, userID, courseID string) (Access, error) {
	ctx, span := tracer.Start(ctx, "Resolver.CheckAccess")
	defer span.End()
	span.SetAttributes(attribute.String("course.id", courseID))

	course, err := r.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return Denied(ReasonCourseNotFound), fmt.Errorf("course %s: %w", courseID, records.ErrNotFound)
		}
		r.logger.Error("failed to load course", zap.String("course_id", courseID), zap.Error(err))
		return Access{}, fmt.Errorf("failed to load course: %w", err)
	}

	access, err := r.decide(ctx, userID, course)
	if err != nil {
		return Access{}, err
	}
	access.Free = course.IsFree
	return access, nil
}

func (r *Resolver) decide(ctx context.Context, userID string, course *records.Course) (Access, error) {
	// Anonymous callers are sent to authenticate, never granted.
	if userID == "" {
		return Denied(ReasonNotEnrolled), nil
	}
	enrolled, err := r.ledger.IsEnrolled(ctx, userID, course.ID)
	if err != nil {
		r.logger.Error("failed to check enrollment",
			zap.String("user_id", userID),
			zap.String("course_id", course.ID),
			zap.Error(err),
		)
		return Access{}, err
	}
	if enrolled {
		return Granted(ReasonEnrolled), nil
	}
	return Denied(ReasonNotEnrolled), nil
}
