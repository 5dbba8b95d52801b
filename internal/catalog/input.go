package catalog

import (
	"errors"
	"fmt"
	"strings"

	"api_commerce/internal/records"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type ProfileInput struct {
	Name string       `json:"name" validate:"required,max=120"`
	Role records.Role `json:"role" validate:"omitempty,oneof=creator learner"`
}

type CourseInput struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=5000"`
	Category    string               `json:"category" validate:"max=100"`
	Price       decimal.Decimal      `json:"price"`
	IsFree      bool                 `json:"is_free"`
	Status      records.CourseStatus `json:"status" validate:"omitempty,oneof=draft published"`
}

type LessonInput struct {
	Title      string `json:"title" validate:"required,max=200"`
	ContentURL string `json:"content_url" validate:"max=1024"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
}

type ProductInput struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Price       decimal.Decimal     `json:"price"`
	Type        records.ProductType `json:"type" validate:"omitempty,oneof=digital physical service"`
}

// FormatValidationErrors converts validation errors to a field -> message map.
func FormatValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return out
	}
	for _, e := range validationErrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", e.Field())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", e.Field())
		}
	}
	return out
}
