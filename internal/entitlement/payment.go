package entitlement

import (
	"context"
	"errors"
	"fmt"

	"api_commerce/internal/records"
)

// ErrPaymentUnavailable is returned by verifiers when no payment subsystem is wired in.
var ErrPaymentUnavailable = errors.New("payment processing is not yet available")

// PaymentVerifier confirms that a learner bought a paid course.
type PaymentVerifier interface {
	HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error)
}

// UnavailablePayments rejects every paid enrollment with ErrPaymentUnavailable.
type UnavailablePayments struct{}

func (UnavailablePayments) HasCompletedPurchase(context.Context, string, string) (bool, error) {
	return false, ErrPaymentUnavailable
}

// OrderReader is the order lookup OrderPayments needs.
type OrderReader interface {
	SelectOrders(ctx context.Context, f records.OrderFilter) ([]*records.Order, error)
}

// OrderPayments treats a completed course order by the learner as proof of purchase.
type OrderPayments struct {
	orders OrderReader
}

func NewOrderPayments(orders OrderReader) *OrderPayments {
	return &OrderPayments{orders: orders}
}

func (p *OrderPayments) HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	orders, err := p.orders.SelectOrders(ctx, records.OrderFilter{
		UserID:   userID,
		ItemIDs:  []string{courseID},
		ItemType: records.ItemCourse,
		Status:   records.OrderCompleted,
	})
	if err != nil {
		return false, fmt.Errorf("failed to read orders: %w", err)
	}
	return len(orders) > 0, nil
}
