package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"api_commerce/internal/entitlement"
	"api_commerce/internal/records"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInput wraps validation failures of caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when a caller touches a record it does not own,
	// or sells without a creator profile.
	ErrForbidden = errors.New("forbidden")
	// ErrNotEntitled is returned when lessons are requested without access.
	ErrNotEntitled = errors.New("not entitled to course content")
)

// Store is the slice of records.Store the catalog uses.
type Store interface {
	InsertProfile(ctx context.Context, p *records.Profile) error
	GetProfile(ctx context.Context, id string) (*records.Profile, error)
	InsertCourse(ctx context.Context, c *records.Course) error
	GetCourse(ctx context.Context, id string) (*records.Course, error)
	SelectCourses(ctx context.Context, f records.CourseFilter) ([]*records.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	InsertLesson(ctx context.Context, l *records.Lesson) error
	SelectLessons(ctx context.Context, courseID string) ([]*records.Lesson, error)
	InsertProduct(ctx context.Context, p *records.Product) error
	GetProduct(ctx context.Context, id string) (*records.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SelectProducts(ctx context.Context, f records.ProductFilter) ([]*records.Product, error)
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, courseID string) (entitlement.Access, error)
}

type Enroller interface {
	Enroll(ctx context.Context, userID, courseID string) (entitlement.EnrollResult, error)
}

// Storefront is a creator's public page: published courses and all products.
type Storefront struct {
	Creator  *records.Profile   `json:"creator"`
	Courses  []*records.Course  `json:"courses"`
	Products []*records.Product `json:"products"`
}

// Service provides creator-side catalog management and learner-side content listing.
type Service struct {
	store          Store
	access         AccessChecker
	enroller       Enroller
	validate       *validator.Validate
	logger         *zap.Logger
	autoEnrollFree bool
	now            func() time.Time
}

// NewService creates a new Service. With autoEnrollFree, opening a free course's lessons
// enrolls the signed-in caller instead of asking for an explicit enroll first.
func NewService(store Store, access AccessChecker, enroller Enroller, logger *zap.Logger, autoEnrollFree bool) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		access:         access,
		enroller:       enroller,
		validate:       validator.New(),
		logger:         logger,
		autoEnrollFree: autoEnrollFree,
		now:            time.Now,
	}
}

// RegisterProfile creates the caller's profile on first sign-in. An existing profile is returned unchanged.
func (s *Service) RegisterProfile(ctx context.Context, userID string, in ProfileInput) (*records.Profile, error) {
	if userID == "" {
		return nil, entitlement.ErrUnauthorized
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	profile := &records.Profile{
		ID:        userID,
		Name:      in.Name,
		Role:      in.Role,
		CreatedAt: s.now(),
	}
	if profile.Role == "" {
		profile.Role = records.RoleLearner
	}
	err := s.store.InsertProfile(ctx, profile)
	if errors.Is(err, records.ErrConstraintViolation) {
		return s.store.GetProfile(ctx, userID)
	}
	if err != nil {
		s.logger.Error("failed to save profile", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	s.logger.Info("profile registered", zap.String("user_id", userID), zap.String("role", string(profile.Role)))
	return profile, nil
}

// CreateCourse stores a new course owned by creatorID. A free course always gets a zero price.
func (s *Service) CreateCourse(ctx context.Context, creatorID string, in CourseInput) (*records.Course, error) {
	if creatorID == "" {
		return nil, entitlement.ErrUnauthorized
	}
	if err := s.requireCreator(ctx, creatorID); err != nil {
		return nil, err
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	now := s.now()
	course := &records.Course{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price.Round(2),
		IsFree:      in.IsFree,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if course.IsFree {
		course.Price = decimal.Zero
	}
	if course.Status == "" {
		course.Status = records.CourseDraft
	}

	if err := s.store.InsertCourse(ctx, course); err != nil {
		s.logger.Error("failed to save course", zap.String("creator_id", creatorID), zap.Error(err))
		return nil, fmt.Errorf("failed to save course: %w", err)
	}
	s.logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("creator_id", creatorID),
		zap.Bool("is_free", course.IsFree),
	)
	return course, nil
}

// ListCreatorCourses returns every course of the creator, drafts included, newest first.
func (s *Service) ListCreatorCourses(ctx context.Context, creatorID string) ([]*records.Course, error) {
	courses, err := s.store.SelectCourses(ctx, records.CourseFilter{CreatorID: creatorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// AddLesson appends a lesson to a course the caller owns.
func (s *Service) AddLesson(ctx context.Context, creatorID, courseID string, in LessonInput) (*records.Lesson, error) {
	if creatorID == "" {
		return nil, entitlement.ErrUnauthorized
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", courseID, err)
	}
	if course.CreatorID != creatorID {
		s.logger.Warn("lesson add on foreign course",
			zap.String("creator_id", creatorID),
			zap.String("course_id", courseID),
		)
		return nil, ErrForbidden
	}

	lesson := &records.Lesson{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		Title:      in.Title,
		ContentURL: in.ContentURL,
		OrderIndex: in.OrderIndex,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertLesson(ctx, lesson); err != nil {
		s.logger.Error("failed to save lesson", zap.String("course_id", courseID), zap.Error(err))
		return nil, fmt.Errorf("failed to save lesson: %w", err)
	}
	return lesson, nil
}

// CreateProduct stores a new product owned by creatorID.
func (s *Service) CreateProduct(ctx context.Context, creatorID string, in ProductInput) (*records.Product, error) {
	if creatorID == "" {
		return nil, entitlement.ErrUnauthorized
	}
	if err := s.requireCreator(ctx, creatorID); err != nil {
		return nil, err
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	product := &records.Product{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Type:        in.Type,
		CreatedAt:   s.now(),
	}
	if product.Type == "" {
		product.Type = records.ProductDigital
	}
	if err := s.store.InsertProduct(ctx, product); err != nil {
		s.logger.Error("failed to save product", zap.String("creator_id", creatorID), zap.Error(err))
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return product, nil
}

// DeleteCourse removes a course the caller owns, with its lessons and enrollments.
// Completed orders stay behind as payment history.
func (s *Service) DeleteCourse(ctx context.Context, creatorID, courseID string) error {
	if creatorID == "" {
		return entitlement.ErrUnauthorized
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("course %s: %w", courseID, err)
	}
	if course.CreatorID != creatorID {
		s.logger.Warn("delete on foreign course",
			zap.String("creator_id", creatorID),
			zap.String("course_id", courseID),
		)
		return ErrForbidden
	}
	if err := s.store.DeleteCourse(ctx, courseID); err != nil {
		s.logger.Error("failed to delete course", zap.String("course_id", courseID), zap.Error(err))
		return fmt.Errorf("failed to delete course: %w", err)
	}
	s.logger.Info("course deleted", zap.String("course_id", courseID), zap.String("creator_id", creatorID))
	return nil
}

// DeleteProduct removes a product the caller owns.
func (s *Service) DeleteProduct(ctx context.Context, creatorID, productID string) error {
	if creatorID == "" {
		return entitlement.ErrUnauthorized
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("product %s: %w", productID, err)
	}
	if product.CreatorID != creatorID {
		s.logger.Warn("delete on foreign product",
			zap.String("creator_id", creatorID),
			zap.String("product_id", productID),
		)
		return ErrForbidden
	}
	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		s.logger.Error("failed to delete product", zap.String("product_id", productID), zap.Error(err))
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// Storefront returns the creator's public page. Unknown ids and non-creators are not found.
func (s *Service) Storefront(ctx context.Context, creatorID string) (*Storefront, error) {
	profile, err := s.store.GetProfile(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("creator %s: %w", creatorID, err)
	}
	if profile.Role != records.RoleCreator {
		return nil, fmt.Errorf("creator %s: %w", creatorID, records.ErrNotFound)
	}

	courses, err := s.store.SelectCourses(ctx, records.CourseFilter{
		CreatorID: creatorID,
		Status:    records.CoursePublished,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	products, err := s.store.SelectProducts(ctx, records.ProductFilter{CreatorID: creatorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &Storefront{Creator: profile, Courses: courses, Products: products}, nil
}

// Lessons lists a course's lessons for an entitled learner. The returned Access explains a denial.
func (s *Service) Lessons(ctx context.Context, userID, courseID string) ([]*records.Lesson, entitlement.Access, error) {
	access, err := s.access.CheckAccess(ctx, userID, courseID)
	if err != nil {
		return nil, access, err
	}

	if !access.Granted && access.Free && userID != "" && s.autoEnrollFree {
		res, err := s.enroller.Enroll(ctx, userID, courseID)
		if err != nil {
			return nil, access, err
		}
		s.logger.Info("auto-enrolled on first view",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("result", string(res)),
		)
		if access, err = s.access.CheckAccess(ctx, userID, courseID); err != nil {
			return nil, access, err
		}
	}

	if !access.Granted {
		return nil, access, ErrNotEntitled
	}

	lessons, err := s.store.SelectLessons(ctx, courseID)
	if err != nil {
		return nil, access, fmt.Errorf("failed to list lessons: %w", err)
	}
	return lessons, access, nil
}

// requireCreator rejects callers without a creator profile.
func (s *Service) requireCreator(ctx context.Context, userID string) error {
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, records.ErrNotFound) {
		return fmt.Errorf("%w: creator profile required", ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.Role != records.RoleCreator {
		return fmt.Errorf("%w: creator profile required", ErrForbidden)
	}
	return nil
}

func (s *Service) validateInput(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
