package records

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a record with the given ID is not found.
var ErrNotFound = errors.New("record not found")

// ErrEmptyID is returned when trying to store a record with an empty ID.
var ErrEmptyID = errors.New("empty record ID")

// ErrConstraintViolation is returned when an insert breaks a uniqueness constraint.
var ErrConstraintViolation = errors.New("unique constraint violation")

// Store is the main interface for our record storage layer.
// Implementations must enforce the (user_id, course_id) uniqueness of enrollments atomically.
type Store interface {
	InsertProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)

	InsertCourse(ctx context.Context, c *Course) error
	GetCourse(ctx context.Context, id string) (*Course, error)
	// SelectCourses returns matching courses, newest first.
	SelectCourses(ctx context.Context, f CourseFilter) ([]*Course, error)
	CountCourses(ctx context.Context, f CourseFilter) (int64, error)
	// DeleteCourse removes the course with its lessons and enrollments. Orders are kept.
	DeleteCourse(ctx context.Context, id string) error

	InsertLesson(ctx context.Context, l *Lesson) error
	// SelectLessons returns a course's lessons in ascending OrderIndex.
	SelectLessons(ctx context.Context, courseID string) ([]*Lesson, error)

	InsertProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	SelectProducts(ctx context.Context, f ProductFilter) ([]*Product, error)
	CountProducts(ctx context.Context, f ProductFilter) (int64, error)
	DeleteProduct(ctx context.Context, id string) error

	// InsertEnrollment returns ErrConstraintViolation when the pair is already enrolled.
	InsertEnrollment(ctx context.Context, e *Enrollment) error
	SelectEnrollments(ctx context.Context, f EnrollmentFilter) ([]*Enrollment, error)
	CountEnrollments(ctx context.Context, f EnrollmentFilter) (int64, error)

	InsertOrder(ctx context.Context, o *Order) error
	SelectOrders(ctx context.Context, f OrderFilter) ([]*Order, error)
}

type enrollmentKey struct {
	userID   string
	courseID string
}

// LocalStorage provides an in-memory implementation of Store.
// The mutex stands in for the database's row-level atomicity; it is never held across a callback.
type LocalStorage struct {
	mu          sync.RWMutex
	profiles    map[string]*Profile
	courses     map[string]*Course
	lessons     map[string]*Lesson
	products    map[string]*Product
	enrollments map[string]*Enrollment
	enrolled    map[enrollmentKey]string
	orders      map[string]*Order
}

// NewLocalStorage instantiates a new LocalStorage with empty tables.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		profiles:    map[string]*Profile{},
		courses:     map[string]*Course{},
		lessons:     map[string]*Lesson{},
		products:    map[string]*Product{},
		enrollments: map[string]*Enrollment{},
		enrolled:    map[enrollmentKey]string{},
		orders:      map[string]*Order{},
	}
}

var _ Store = (*LocalStorage)(nil)

func (l *LocalStorage) InsertProfile(ctx context.Context, p *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.profiles[p.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *p
	l.profiles[p.ID] = &cp
	return nil
}

// GetProfile returns ErrNotFound if the profile is not found.
func (l *LocalStorage) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *LocalStorage) InsertCourse(ctx context.Context, c *Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.courses[c.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *c
	l.courses[c.ID] = &cp
	return nil
}

// GetCourse returns ErrNotFound if the course is not found.
func (l *LocalStorage) GetCourse(ctx context.Context, id string) (*Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (l *LocalStorage) SelectCourses(ctx context.Context, f CourseFilter) ([]*Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]*Course, 0, len(l.courses))
	for _, c := range l.courses {
		if !f.matches(c) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *LocalStorage) CountCourses(ctx context.Context, f CourseFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n int64
	for _, c := range l.courses {
		if f.matches(c) {
			n++
		}
	}
	return n, nil
}

// DeleteCourse returns ErrNotFound if the course is not found.
func (l *LocalStorage) DeleteCourse(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.courses[id]; !ok {
		return ErrNotFound
	}
	delete(l.courses, id)
	for lessonID, ls := range l.lessons {
		if ls.CourseID == id {
			delete(l.lessons, lessonID)
		}
	}
	for enrollmentID, e := range l.enrollments {
		if e.CourseID == id {
			delete(l.enrollments, enrollmentID)
			delete(l.enrolled, enrollmentKey{userID: e.UserID, courseID: e.CourseID})
		}
	}
	return nil
}

func (l *LocalStorage) InsertLesson(ctx context.Context, ls *Lesson) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ls.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lessons[ls.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *ls
	l.lessons[ls.ID] = &cp
	return nil
}

func (l *LocalStorage) SelectLessons(ctx context.Context, courseID string) ([]*Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]*Lesson, 0)
	for _, ls := range l.lessons {
		if ls.CourseID != courseID {
			continue
		}
		cp := *ls
		out = append(out, &cp)
	}
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (l *LocalStorage) InsertProduct(ctx context.Context, p *Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.products[p.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *p
	l.products[p.ID] = &cp
	return nil
}

// GetProduct returns ErrNotFound if the product is not found.
func (l *LocalStorage) GetProduct(ctx context.Context, id string) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *LocalStorage) SelectProducts(ctx context.Context, f ProductFilter) ([]*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]*Product, 0)
	for _, p := range l.products {
		if f.CreatorID != "" && p.CreatorID != f.CreatorID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *LocalStorage) CountProducts(ctx context.Context, f ProductFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n int64
	for _, p := range l.products {
		if f.CreatorID == "" || p.CreatorID == f.CreatorID {
			n++
		}
	}
	return n, nil
}

func (l *LocalStorage) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.products[id]; !ok {
		return ErrNotFound
	}
	delete(l.products, id)
	return nil
}

// InsertEnrollment checks and claims the (user, course) pair under one write lock,
// which is what a unique index does inside a database.
func (l *LocalStorage) InsertEnrollment(ctx context.Context, e *Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return ErrEmptyID
	}
	key := enrollmentKey{userID: e.UserID, courseID: e.CourseID}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.enrolled[key]; ok {
		return ErrConstraintViolation
	}
	if _, ok := l.enrollments[e.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *e
	l.enrollments[e.ID] = &cp
	l.enrolled[key] = e.ID
	return nil
}

func (l *LocalStorage) SelectEnrollments(ctx context.Context, f EnrollmentFilter) ([]*Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := idSet(f.CourseIDs)
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Enrollment, 0)
	for _, e := range l.enrollments {
		if !f.matches(e, in) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (l *LocalStorage) CountEnrollments(ctx context.Context, f EnrollmentFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	in := idSet(f.CourseIDs)
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n int64
	for _, e := range l.enrollments {
		if f.matches(e, in) {
			n++
		}
	}
	return n, nil
}

func (l *LocalStorage) InsertOrder(ctx context.Context, o *Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[o.ID]; ok {
		return ErrConstraintViolation
	}
	cp := *o
	l.orders[o.ID] = &cp
	return nil
}

func (l *LocalStorage) SelectOrders(ctx context.Context, f OrderFilter) ([]*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := idSet(f.ItemIDs)
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Order, 0)
	for _, o := range l.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.ItemType != "" && o.ItemType != f.ItemType {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if in != nil {
			if _, ok := in[o.ItemID]; !ok {
				continue
			}
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f CourseFilter) matches(c *Course) bool {
	if f.CreatorID != "" && c.CreatorID != f.CreatorID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

func (f EnrollmentFilter) matches(e *Enrollment, courses map[string]struct{}) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if courses != nil {
		if _, ok := courses[e.CourseID]; !ok {
			return false
		}
	}
	return true
}

// idSet returns nil for a nil slice so callers can tell "unconstrained" from "match nothing".
func idSet(ids []string) map[string]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
