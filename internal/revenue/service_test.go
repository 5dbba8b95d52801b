package revenue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"api_commerce/internal/entitlement"
	"api_commerce/internal/records"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingStore counts calls per method and can fail one of them.
type recordingStore struct {
	*records.LocalStorage

	mu     sync.Mutex
	calls  map[string]int
	failOn string
	err    error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{LocalStorage: records.NewLocalStorage(), calls: map[string]int{}}
}

func (r *recordingStore) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
	if name == r.failOn {
		return r.err
	}
	return nil
}

func (r *recordingStore) SelectCourses(ctx context.Context, f records.CourseFilter) ([]*records.Course, error) {
	if err := r.record("SelectCourses"); err != nil {
		return nil, err
	}
	return r.LocalStorage.SelectCourses(ctx, f)
}

func (r *recordingStore) CountProducts(ctx context.Context, f records.ProductFilter) (int64, error) {
	if err := r.record("CountProducts"); err != nil {
		return 0, err
	}
	return r.LocalStorage.CountProducts(ctx, f)
}

func (r *recordingStore) SelectProducts(ctx context.Context, f records.ProductFilter) ([]*records.Product, error) {
	if err := r.record("SelectProducts"); err != nil {
		return nil, err
	}
	return r.LocalStorage.SelectProducts(ctx, f)
}

func (r *recordingStore) SelectEnrollments(ctx context.Context, f records.EnrollmentFilter) ([]*records.Enrollment, error) {
	if err := r.record("SelectEnrollments"); err != nil {
		return nil, err
	}
	return r.LocalStorage.SelectEnrollments(ctx, f)
}

func (r *recordingStore) SelectOrders(ctx context.Context, f records.OrderFilter) ([]*records.Order, error) {
	if err := r.record("SelectOrders"); err != nil {
		return nil, err
	}
	return r.LocalStorage.SelectOrders(ctx, f)
}

type fixture struct {
	t     *testing.T
	store *recordingStore
	n     int
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: newRecordingStore()}
}

func (f *fixture) course(id, creator, price string, free bool) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertCourse(context.Background(), &records.Course{
		ID: id, CreatorID: creator, Title: id, Price: decimal.RequireFromString(price), IsFree: free,
		Status: records.CoursePublished,
	}))
}

func (f *fixture) product(id, creator, price string) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertProduct(context.Background(), &records.Product{
		ID: id, CreatorID: creator, Name: id, Price: decimal.RequireFromString(price), Type: records.ProductDigital,
	}))
}

func (f *fixture) enroll(user, course string) {
	f.t.Helper()
	f.n++
	require.NoError(f.t, f.store.InsertEnrollment(context.Background(), &records.Enrollment{
		ID: "e" + string(rune('0'+f.n)), UserID: user, CourseID: course,
	}))
}

func (f *fixture) order(user, item string, itemType records.ItemType, amount string, status records.OrderStatus) {
	f.t.Helper()
	f.n++
	require.NoError(f.t, f.store.InsertOrder(context.Background(), &records.Order{
		ID: "o" + string(rune('0'+f.n)), UserID: user, ItemID: item, ItemType: itemType,
		Amount: decimal.RequireFromString(amount), Status: status,
	}))
}

func (f *fixture) service(opts Options) *Service {
	return NewService(f.store, opts, zaptest.NewLogger(f.t))
}

func TestComputeStats_DeduplicatesLearners(t *testing.T) {
	f := newFixture(t)
	f.course("c1", "k", "10", false)
	f.course("c2", "k", "10", false)
	f.course("c3", "other", "10", false)
	f.enroll("u1", "c1")
	f.enroll("u1", "c2")
	f.enroll("u2", "c1")
	f.enroll("u3", "c3")

	stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalLearners)
	assert.Equal(t, int64(2), stats.TotalCourses)
}

func TestComputeStats_ExactRevenue(t *testing.T) {
	f := newFixture(t)
	f.course("c1", "k", "19.99", false)
	f.course("c2", "k", "9.50", false)
	f.order("u1", "c1", records.ItemCourse, "19.99", records.OrderCompleted)
	f.order("u2", "c2", records.ItemCourse, "9.50", records.OrderCompleted)
	f.order("u3", "c1", records.ItemCourse, "100.00", records.OrderCancelled)
	f.order("u4", "c1", records.ItemCourse, "5.00", records.OrderPending)

	stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, stats.TotalSales.Equal(decimal.RequireFromString("29.49")), "got %s", stats.TotalSales)
	assert.Equal(t, "29.49", stats.TotalSales.StringFixed(2))
}

func TestComputeStats_NoFloatDrift(t *testing.T) {
	f := newFixture(t)
	f.course("c1", "k", "0.10", false)
	for i := 0; i < 3; i++ {
		f.order("u", "c1", records.ItemCourse, "0.10", records.OrderCompleted)
	}
	f.order("u", "c1", records.ItemCourse, "0.20", records.OrderCompleted)

	stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	// 0.1+0.1+0.1+0.2 in float64 is 0.5000000000000001.
	assert.Equal(t, "0.50", stats.TotalSales.StringFixed(2))
	assert.True(t, stats.TotalSales.Equal(decimal.RequireFromString("0.5")))
}

func TestComputeStats_EmptyCreatorShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "k", "5")
	f.product("p2", "k", "7")
	f.course("c9", "other", "10", false)
	f.enroll("u1", "c9")

	stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCourses)
	assert.Equal(t, int64(0), stats.TotalLearners)
	assert.True(t, stats.TotalSales.IsZero())
	assert.Equal(t, int64(2), stats.ProductsListed)

	assert.Zero(t, f.store.calls["SelectEnrollments"], "no enrollment query for an empty course set")
	assert.Zero(t, f.store.calls["SelectOrders"], "no order query for an empty course set")
}

func TestComputeStats_ProductSalesOption(t *testing.T) {
	f := newFixture(t)
	f.course("c1", "k", "20", false)
	f.product("p1", "k", "5")
	f.order("u1", "c1", records.ItemCourse, "20.00", records.OrderCompleted)
	f.order("u2", "p1", records.ItemProduct, "5.25", records.OrderCompleted)

	stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "20.00", stats.TotalSales.StringFixed(2), "product orders excluded by default")
	assert.Equal(t, int64(1), stats.ProductsListed)
	assert.Zero(t, f.store.calls["SelectProducts"])

	stats, err = f.service(Options{IncludeProductSales: true}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "25.25", stats.TotalSales.StringFixed(2))
	assert.Equal(t, int64(1), stats.ProductsListed)
}

func TestComputeStats_ProductSalesWithoutCourses(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "k", "5")
	f.order("u2", "p1", records.ItemProduct, "5.00", records.OrderCompleted)

	stats, err := f.service(Options{IncludeProductSales: true}).ComputeStats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "5.00", stats.TotalSales.StringFixed(2))
	assert.Zero(t, stats.TotalLearners)
	assert.Zero(t, f.store.calls["SelectEnrollments"])
	assert.Equal(t, 1, f.store.calls["SelectOrders"], "product orders are read even without courses")
}

func TestComputeStats_AnyReadFailureIsUnavailable(t *testing.T) {
	for _, method := range []string{"SelectCourses", "CountProducts", "SelectEnrollments", "SelectOrders"} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			f.course("c1", "k", "10", false)
			f.enroll("u1", "c1")
			f.order("u1", "c1", records.ItemCourse, "10.00", records.OrderCompleted)
			boom := errors.New("connection reset")
			f.store.failOn, f.store.err = method, boom

			stats, err := f.service(Options{}).ComputeStats(context.Background(), "k")
			assert.ErrorIs(t, err, ErrStatsUnavailable)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, StatsSnapshot{}, stats, "no partial stats")
		})
	}
}

func TestComputeStats_EmptyCreatorID(t *testing.T) {
	_, err := newFixture(t).service(Options{}).ComputeStats(context.Background(), "")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

// Creator K owns a free and a paid course. A enrolls in the free one; B paid for the
// paid one but has not been enrolled yet.
func TestComputeStats_CreatorScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.course("c1", "k", "0", true)
	f.course("c2", "k", "49.99", false)

	ledger := entitlement.NewLedger(f.store, nil, zaptest.NewLogger(t))
	res, err := ledger.Enroll(ctx, "learner-a", "c1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.Created, res)
	res, err = ledger.Enroll(ctx, "learner-a", "c1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.AlreadyExists, res)

	f.order("learner-b", "c2", records.ItemCourse, "49.99", records.OrderCompleted)

	stats, err := f.service(Options{}).ComputeStats(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCourses)
	assert.Equal(t, int64(1), stats.TotalLearners)
	assert.Equal(t, "49.99", stats.TotalSales.StringFixed(2))
}

func TestStatsSnapshot_JSONIsExact(t *testing.T) {
	snap := StatsSnapshot{
		TotalCourses:   2,
		TotalSales:     decimal.RequireFromString("29.49"),
		TotalLearners:  1,
		ProductsListed: 3,
	}
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_courses":2,"total_sales":29.49,"total_learners":1,"products_listed":3}`, string(b))
	assert.Contains(t, string(b), `"total_sales":29.49`)

	zero, err := json.Marshal(StatsSnapshot{TotalSales: decimal.Zero})
	require.NoError(t, err)
	assert.Contains(t, string(zero), `"total_sales":0.00`)

	var back StatsSnapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.TotalSales.Equal(snap.TotalSales))
	assert.Equal(t, snap.TotalLearners, back.TotalLearners)
}
