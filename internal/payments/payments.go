// Package payments wraps the Stripe Checkout API behind a small gateway
// interface so handlers can be exercised with fakes.
package payments

import (
	"context"
	"errors"
	"fmt"
)

// Session modes understood by the gateway.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// ErrSessionNotFound is returned when the provider does not know the
// requested checkout session.
var ErrSessionNotFound = errors.New("checkout session not found")

// SessionRequest describes the checkout session to create.
type SessionRequest struct {
	Mode          string
	PriceIDs      []string
	CustomerEmail string

	// CouponID and AllowPromotionCodes are mutually exclusive; Stripe
	// rejects requests specifying both.
	CouponID            string
	AllowPromotionCodes bool

	Metadata             map[string]string
	SubscriptionMetadata map[string]string

	SuccessURL string
	CancelURL  string
}

// Discount is one applied discount from the session total breakdown.
type Discount struct {
	Coupon        string `json:"coupon,omitempty"`
	PromotionCode string `json:"promotionCode,omitempty"`
	Amount        int64  `json:"amount"`
}

// Session is the provider-owned checkout session, reduced to the fields
// this service reads.
type Session struct {
	ID             string
	URL            string
	PaymentStatus  string
	Email          string
	Name           string
	Currency       string
	AmountSubtotal int64
	AmountTotal    int64
	Discounts      []Discount
}

// PaymentComplete reports whether the session has been paid.
func (s *Session) PaymentComplete() bool {
	return s != nil && s.PaymentStatus == "paid"
}

// LineItem is one purchased catalog entry.
type LineItem struct {
	PriceID     string
	ProductID   string
	Description string
	ProductName string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

// DisplayName picks the buyer-facing label for a line item: item
// description, then product name, then a generic fallback.
func (li LineItem) DisplayName() string {
	if li.Description != "" {
		return li.Description
	}
	if li.ProductName != "" {
		return li.ProductName
	}
	return "Masterclass"
}

// Gateway is the payment-provider surface consumed by the handlers.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

// ProviderError carries the upstream error code and message so handlers
// can surface them for diagnostics.
type ProviderError struct {
	Code    string
	Message string
	Status  int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("stripe request failed: status=%d code=%s message=%q", e.Status, e.Code, e.Message)
}
