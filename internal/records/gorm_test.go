package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func setupMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Discard,
	})
	require.NoError(t, err)
	return NewGormStore(db, zaptest.NewLogger(t)), mock
}

func setupSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	store := NewGormStore(db, zaptest.NewLogger(t))
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestGormStore_InsertEnrollment_UniqueViolation(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO "enrollments"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_enrollments_user_course"})

	err := store.InsertEnrollment(context.Background(), &Enrollment{ID: "e1", UserID: "u1", CourseID: "c1"})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_InsertEnrollment_OtherErrorPassesThrough(t *testing.T) {
	store, mock := setupMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO "enrollments"`).WillReturnError(boom)

	err := store.InsertEnrollment(context.Background(), &Enrollment{ID: "e1", UserID: "u1", CourseID: "c1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConstraintViolation)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetCourse_NotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "courses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetCourse(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CountEnrollments_Query(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "enrollments" WHERE user_id = \$1 AND course_id IN \(\$2\)`).
		WithArgs("u1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := store.CountEnrollments(context.Background(), EnrollmentFilter{UserID: "u1", CourseIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"pg code", &pgconn.PgError{Code: "23505"}, true},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"wrapped message", errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), true},
		{"sqlite message", errors.New("UNIQUE constraint failed: enrollments.user_id, enrollments.course_id"), true},
		{"other", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestGormStore_SQLite_EnrollmentUniqueIndex(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InsertEnrollment(ctx, &Enrollment{
				ID:        uuid.NewString(),
				UserID:    "u1",
				CourseID:  "c1",
				CreatedAt: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConstraintViolation):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	n, err := store.CountEnrollments(ctx, EnrollmentFilter{UserID: "u1", CourseIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGormStore_SQLite_RoundTripsDecimals(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOrder(ctx, &Order{
		ID: "o1", UserID: "u1", ItemID: "c1", ItemType: ItemCourse,
		Amount: decimal.RequireFromString("19.99"), Status: OrderCompleted,
	}))
	require.NoError(t, store.InsertOrder(ctx, &Order{
		ID: "o2", UserID: "u2", ItemID: "c1", ItemType: ItemCourse,
		Amount: decimal.RequireFromString("100.00"), Status: OrderCancelled,
	}))

	orders, err := store.SelectOrders(ctx, OrderFilter{ItemIDs: []string{"c1"}, Status: OrderCompleted})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Amount.Equal(decimal.RequireFromString("19.99")), "got %s", orders[0].Amount)

	none, err := store.SelectOrders(ctx, OrderFilter{ItemIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormStore_SQLite_Deletes(t *testing.T) {
	exerciseDeletes(t, setupSQLiteStore(t))
}

func TestGormStore_DeleteProduct_NotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`DELETE FROM "products"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
