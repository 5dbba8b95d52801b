package revenue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"api_commerce/internal/records"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrStatsUnavailable is returned when any read behind a snapshot fails.
var ErrStatsUnavailable = errors.New("stats unavailable")

var tracer = otel.Tracer("api_commerce/internal/revenue")

// StatsSnapshot holds a creator's dashboard metrics.
type StatsSnapshot struct {
	TotalCourses   int64
	TotalSales     decimal.Decimal
	TotalLearners  int64
	ProductsListed int64
}

// MarshalJSON writes TotalSales as a JSON number literal with two fraction digits,
// so no float conversion happens on either side of the wire.
func (s StatsSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalCourses   int64           `json:"total_courses"`
		TotalSales     json.RawMessage `json:"total_sales"`
		TotalLearners  int64           `json:"total_learners"`
		ProductsListed int64           `json:"products_listed"`
	}{
		TotalCourses:   s.TotalCourses,
		TotalSales:     json.RawMessage(s.TotalSales.StringFixed(2)),
		TotalLearners:  s.TotalLearners,
		ProductsListed: s.ProductsListed,
	})
}

// UnmarshalJSON reads the format MarshalJSON writes without going through float64.
func (s *StatsSnapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		TotalCourses   int64       `json:"total_courses"`
		TotalSales     json.Number `json:"total_sales"`
		TotalLearners  int64       `json:"total_learners"`
		ProductsListed int64       `json:"products_listed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sales, err := decimal.NewFromString(raw.TotalSales.String())
	if err != nil {
		return fmt.Errorf("total_sales: %w", err)
	}
	*s = StatsSnapshot{
		TotalCourses:   raw.TotalCourses,
		TotalSales:     sales,
		TotalLearners:  raw.TotalLearners,
		ProductsListed: raw.ProductsListed,
	}
	return nil
}

// Options tunes what counts toward a snapshot.
type Options struct {
	// IncludeProductSales adds completed product orders to TotalSales.
	// Historically only course orders were summed. When set, the empty-course
	// short-circuit no longer applies to sales: a creator with products but no
	// courses still has their product orders read and summed.
	IncludeProductSales bool
}

// Store is the read-only slice of records.Store the aggregator needs.
type Store interface {
	SelectCourses(ctx context.Context, f records.CourseFilter) ([]*records.Course, error)
	SelectProducts(ctx context.Context, f records.ProductFilter) ([]*records.Product, error)
	CountProducts(ctx context.Context, f records.ProductFilter) (int64, error)
	SelectEnrollments(ctx context.Context, f records.EnrollmentFilter) ([]*records.Enrollment, error)
	SelectOrders(ctx context.Context, f records.OrderFilter) ([]*records.Order, error)
}

// Service computes creator stats. It keeps no state between calls and never writes.
type Service struct {
	store   Store
	options Options
	logger  *zap.Logger
}

// NewService creates a new Service.
func NewService(store Store, options Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		options: options,
		logger:  logger,
	}
}

// ComputeStats correlates the creator's courses, products, enrollments and completed orders.
// It returns a complete snapshot or an error wrapping ErrStatsUnavailable, never a partial one.
func (s *Service) ComputeStats(ctx context.Context, creatorID string) (StatsSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Service.ComputeStats",
		trace.WithAttributes(attribute.String("creator.id", creatorID)),
	)
	defer span.End()

	if creatorID == "" {
		return StatsSnapshot{}, fmt.Errorf("creator: %w", records.ErrNotFound)
	}

	snapshot, err := s.compute(ctx, creatorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stats unavailable")
		s.logger.Error("failed to compute stats", zap.String("creator_id", creatorID), zap.Error(err))
		return StatsSnapshot{}, fmt.Errorf("%w: %w", ErrStatsUnavailable, err)
	}

	s.logger.Info("stats computed",
		zap.String("creator_id", creatorID),
		zap.Int64("total_courses", snapshot.TotalCourses),
		zap.Int64("total_learners", snapshot.TotalLearners),
		zap.Int64("products_listed", snapshot.ProductsListed),
		zap.String("total_sales", snapshot.TotalSales.StringFixed(2)),
	)
	return snapshot, nil
}

func (s *Service) compute(ctx context.Context, creatorID string) (StatsSnapshot, error) {
	// 1. Courses owned by the creator.
	courses, err := s.store.SelectCourses(ctx, records.CourseFilter{CreatorID: creatorID})
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("select courses: %w", err)
	}
	courseIDs := make([]string, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.ID)
	}

	// 2. Products: a count is enough unless their orders are summed too.
	productsListed, productIDs, err := s.products(ctx, creatorID)
	if err != nil {
		return StatsSnapshot{}, err
	}

	snapshot := StatsSnapshot{
		TotalCourses:   int64(len(courses)),
		TotalSales:     decimal.Zero,
		ProductsListed: productsListed,
	}

	// 3. Distinct learners across the creator's courses.
	if len(courseIDs) > 0 {
		enrollments, err := s.store.SelectEnrollments(ctx, records.EnrollmentFilter{CourseIDs: courseIDs})
		if err != nil {
			return StatsSnapshot{}, fmt.Errorf("select enrollments: %w", err)
		}
		snapshot.TotalLearners = countDistinctLearners(enrollments)
	}

	// 4. Completed sales of the creator's items.
	itemIDs := append(courseIDs, productIDs...)
	if len(itemIDs) > 0 {
		orders, err := s.store.SelectOrders(ctx, records.OrderFilter{
			ItemIDs: itemIDs,
			Status:  records.OrderCompleted,
		})
		if err != nil {
			return StatsSnapshot{}, fmt.Errorf("select orders: %w", err)
		}
		snapshot.TotalSales = sumCompleted(orders)
	}

	return snapshot, nil
}

func (s *Service) products(ctx context.Context, creatorID string) (int64, []string, error) {
	filter := records.ProductFilter{CreatorID: creatorID}
	if !s.options.IncludeProductSales {
		n, err := s.store.CountProducts(ctx, filter)
		if err != nil {
			return 0, nil, fmt.Errorf("count products: %w", err)
		}
		return n, nil, nil
	}
	products, err := s.store.SelectProducts(ctx, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("select products: %w", err)
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return int64(len(products)), ids, nil
}

func countDistinctLearners(enrollments []*records.Enrollment) int64 {
	learners := make(map[string]struct{}, len(enrollments))
	for _, e := range enrollments {
		learners[e.UserID] = struct{}{}
	}
	return int64(len(learners))
}

// sumCompleted adds completed order amounts exactly and rounds to cents once, at the end.
func sumCompleted(orders []*records.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status != records.OrderCompleted {
			continue
		}
		total = total.Add(o.Amount)
	}
	return total.Round(2)
}
