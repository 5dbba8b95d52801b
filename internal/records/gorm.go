package records

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// GormStore implements Store on a relational database through GORM.
// The enrollment uniqueness constraint is the idx_enrollments_user_course unique index.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps an open GORM handle.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger}
}

func gormConfig(level gormLogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

// OpenPostgres connects to Postgres and sizes the connection pool.
func OpenPostgres(dsn string, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(gormLogger.Warn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// OpenSQLite opens a SQLite database. SQLite allows one writer, so the pool is pinned to one connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(gormLogger.Silent))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every table and index the engine relies on.
func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&Profile{},
		&Course{},
		&Lesson{},
		&Product{},
		&Enrollment{},
		&Order{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *GormStore) InsertProfile(ctx context.Context, p *Profile) error {
	return s.insert(ctx, "profiles", p)
}

func (s *GormStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapError("get profile", err)
	}
	return &p, nil
}

func (s *GormStore) InsertCourse(ctx context.Context, c *Course) error {
	return s.insert(ctx, "courses", c)
}

func (s *GormStore) GetCourse(ctx context.Context, id string) (*Course, error) {
	var c Course
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapError("get course", err)
	}
	return &c, nil
}

func (s *GormStore) SelectCourses(ctx context.Context, f CourseFilter) ([]*Course, error) {
	var out []*Course
	err := s.courseQuery(ctx, f).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, mapError("select courses", err)
	}
	return out, nil
}

func (s *GormStore) CountCourses(ctx context.Context, f CourseFilter) (int64, error) {
	var n int64
	if err := s.courseQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, mapError("count courses", err)
	}
	return n, nil
}

// DeleteCourse removes the course and its dependent rows in one transaction.
func (s *GormStore) DeleteCourse(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&Lesson{}).Error; err != nil {
			return mapError("delete lessons", err)
		}
		if err := tx.Where("course_id = ?", id).Delete(&Enrollment{}).Error; err != nil {
			return mapError("delete enrollments", err)
		}
		res := tx.Where("id = ?", id).Delete(&Course{})
		if res.Error != nil {
			return mapError("delete course", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete course: %w", ErrNotFound)
		}
		return nil
	})
}

func (s *GormStore) InsertLesson(ctx context.Context, l *Lesson) error {
	return s.insert(ctx, "lessons", l)
}

func (s *GormStore) SelectLessons(ctx context.Context, courseID string) ([]*Lesson, error) {
	var out []*Lesson
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("order_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, mapError("select lessons", err)
	}
	return out, nil
}

func (s *GormStore) InsertProduct(ctx context.Context, p *Product) error {
	return s.insert(ctx, "products", p)
}

func (s *GormStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapError("get product", err)
	}
	return &p, nil
}

func (s *GormStore) SelectProducts(ctx context.Context, f ProductFilter) ([]*Product, error) {
	var out []*Product
	err := s.productQuery(ctx, f).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, mapError("select products", err)
	}
	return out, nil
}

func (s *GormStore) CountProducts(ctx context.Context, f ProductFilter) (int64, error) {
	var n int64
	if err := s.productQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, mapError("count products", err)
	}
	return n, nil
}

func (s *GormStore) DeleteProduct(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if res.Error != nil {
		return mapError("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete product: %w", ErrNotFound)
	}
	return nil
}

// InsertEnrollment relies on the unique index alone; there is no read before the write.
func (s *GormStore) InsertEnrollment(ctx context.Context, e *Enrollment) error {
	return s.insert(ctx, "enrollments", e)
}

func (s *GormStore) SelectEnrollments(ctx context.Context, f EnrollmentFilter) ([]*Enrollment, error) {
	var out []*Enrollment
	if err := s.enrollmentQuery(ctx, f).Find(&out).Error; err != nil {
		return nil, mapError("select enrollments", err)
	}
	return out, nil
}

func (s *GormStore) CountEnrollments(ctx context.Context, f EnrollmentFilter) (int64, error) {
	var n int64
	if err := s.enrollmentQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, mapError("count enrollments", err)
	}
	return n, nil
}

func (s *GormStore) InsertOrder(ctx context.Context, o *Order) error {
	return s.insert(ctx, "orders", o)
}

func (s *GormStore) SelectOrders(ctx context.Context, f OrderFilter) ([]*Order, error) {
	q := s.db.WithContext(ctx).Model(&Order{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ItemIDs != nil {
		q = q.Where("item_id IN ?", f.ItemIDs)
	}
	if f.ItemType != "" {
		q = q.Where("item_type = ?", f.ItemType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []*Order
	if err := q.Find(&out).Error; err != nil {
		return nil, mapError("select orders", err)
	}
	return out, nil
}

func (s *GormStore) insert(ctx context.Context, table string, row any) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		mapped := mapError("insert "+table, err)
		if !errors.Is(mapped, ErrConstraintViolation) {
			s.logger.Error("insert failed", zap.String("table", table), zap.Error(err))
		}
		return mapped
	}
	return nil
}

func (s *GormStore) courseQuery(ctx context.Context, f CourseFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Course{})
	if f.CreatorID != "" {
		q = q.Where("creator_id = ?", f.CreatorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *GormStore) productQuery(ctx context.Context, f ProductFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Product{})
	if f.CreatorID != "" {
		q = q.Where("creator_id = ?", f.CreatorID)
	}
	return q
}

func (s *GormStore) enrollmentQuery(ctx context.Context, f EnrollmentFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Enrollment{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.CourseIDs != nil {
		q = q.Where("course_id IN ?", f.CourseIDs)
	}
	return q
}

// mapError folds driver errors into the package sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrConstraintViolation)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// Fallback: wrapped errors that lost type info, and SQLite's "UNIQUE constraint failed".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
