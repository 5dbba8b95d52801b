package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the role of a profile.
type Role string

const (
	RoleCreator Role = "creator"
	RoleLearner Role = "learner"
)

// CourseStatus is the publication state of a course.
type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
)

// OrderStatus is the payment state of an order. Only completed orders count as revenue.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// ItemType tells which table an order's ItemID points to.
type ItemType string

const (
	ItemCourse  ItemType = "course"
	ItemProduct ItemType = "product"
)

// ProductType is the kind of goods a product sells.
type ProductType string

const (
	ProductDigital  ProductType = "digital"
	ProductPhysical ProductType = "physical"
	ProductService  ProductType = "service"
)

// Profile is the public record of an authenticated user. Its ID is the identity provider's user id.
type Profile struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Role      Role      `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Course is owned by exactly one creator. A free course always has a zero price.
type Course struct {
	ID          string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	CreatorID   string          `json:"creator_id" gorm:"type:varchar(64);not null;index"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	IsFree      bool            `json:"is_free" gorm:"not null"`
	Status      CourseStatus    `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Lesson is a unit of course content, played in OrderIndex order.
type Lesson struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	CourseID   string    `json:"course_id" gorm:"type:varchar(36);not null;index"`
	Title      string    `json:"title" gorm:"not null"`
	ContentURL string    `json:"content_url"`
	OrderIndex int       `json:"order_index" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// Enrollment joins a learner to a course. The store allows at most one per (UserID, CourseID).
type Enrollment struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_enrollments_user_course,priority:1"`
	CourseID  string    `json:"course_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollments_user_course,priority:2;index"`
	Progress  int       `json:"progress" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is a purchase record. Its lifecycle belongs to the payment subsystem.
type Order struct {
	ID        string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string          `json:"user_id" gorm:"type:varchar(64);not null;index"`
	ItemID    string          `json:"item_id" gorm:"type:varchar(36);not null;index"`
	ItemType  ItemType        `json:"item_type" gorm:"type:varchar(16);not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status    OrderStatus     `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time       `json:"created_at"`
}

// Product is a non-course item listed by a creator.
type Product struct {
	ID          string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	CreatorID   string          `json:"creator_id" gorm:"type:varchar(64);not null;index"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Type        ProductType     `json:"type" gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CourseFilter selects courses. Zero fields leave the column unconstrained.
type CourseFilter struct {
	CreatorID string
	Status    CourseStatus
}

// ProductFilter selects products.
type ProductFilter struct {
	CreatorID string
}

// EnrollmentFilter selects enrollments. A nil CourseIDs leaves course_id unconstrained;
// an empty non-nil slice matches nothing.
type EnrollmentFilter struct {
	UserID    string
	CourseIDs []string
}

// OrderFilter selects orders. ItemIDs follows the same nil/empty rule as EnrollmentFilter.CourseIDs.
type OrderFilter struct {
	UserID   string
	ItemIDs  []string
	ItemType ItemType
	Status   OrderStatus
}
