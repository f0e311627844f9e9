package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const lineItemPageLimit = 100

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway creates a gateway authenticated with the given secret key.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{sc: sc}, nil
}

// CreateSession creates a checkout session and returns its redirect URL.
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(req.Mode),
		SuccessURL: stripelib.String(req.SuccessURL),
		CancelURL:  stripelib.String(req.CancelURL),
		AutomaticTax: &stripelib.CheckoutSessionAutomaticTaxParams{
			Enabled: stripelib.Bool(true),
		},
	}
	params.Context = ctx

	for _, priceID := range req.PriceIDs {
		params.LineItems = append(params.LineItems, &stripelib.CheckoutSessionLineItemParams{
			Price:    stripelib.String(priceID),
			Quantity: stripelib.Int64(1),
		})
	}

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripelib.String(req.CustomerEmail)
	}

	// Stripe rejects requests carrying both discounts and
	// allow_promotion_codes, so only one side is ever set.
	if req.CouponID != "" {
		params.Discounts = []*stripelib.CheckoutSessionDiscountParams{
			{Coupon: stripelib.String(req.CouponID)},
		}
	} else if req.AllowPromotionCodes {
		params.AllowPromotionCodes = stripelib.Bool(true)
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.Mode == ModeSubscription && len(req.SubscriptionMetadata) > 0 {
		params.SubscriptionData = &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: req.SubscriptionMetadata,
		}
	}

	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return fromStripeSession(sess), nil
}

// GetSession retrieves a session with its discount breakdown expanded.
func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripelib.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("total_details.breakdown")

	sess, err := g.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripeError("retrieve checkout session", err)
	}
	return fromStripeSession(sess), nil
}

// ListLineItems returns the purchased line items with product data expanded.
func (g *StripeGateway) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	params := &stripelib.CheckoutSessionListLineItemsParams{
		Session: stripelib.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripelib.Int64(lineItemPageLimit)
	params.AddExpand("data.price.product")

	var items []LineItem
	iter := g.sc.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, fromStripeLineItem(iter.LineItem()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("list checkout line items", err)
	}
	return items, nil
}

func fromStripeSession(sess *stripelib.CheckoutSession) *Session {
	if sess == nil {
		return nil
	}
	out := &Session{
		ID:             sess.ID,
		URL:            sess.URL,
		PaymentStatus:  string(sess.PaymentStatus),
		Email:          sess.CustomerEmail,
		Currency:       string(sess.Currency),
		AmountSubtotal: sess.AmountSubtotal,
		AmountTotal:    sess.AmountTotal,
	}
	if sess.CustomerDetails != nil {
		if email := strings.TrimSpace(sess.CustomerDetails.Email); email != "" {
			out.Email = email
		}
		out.Name = strings.TrimSpace(sess.CustomerDetails.Name)
	}
	if sess.TotalDetails != nil && sess.TotalDetails.Breakdown != nil {
		for _, d := range sess.TotalDetails.Breakdown.Discounts {
			if d == nil {
				continue
			}
			discount := Discount{Amount: d.Amount}
			if d.Discount != nil {
				if d.Discount.Coupon != nil {
					discount.Coupon = d.Discount.Coupon.ID
				}
				if d.Discount.PromotionCode != nil {
					discount.PromotionCode = d.Discount.PromotionCode.ID
				}
			}
			out.Discounts = append(out.Discounts, discount)
		}
	}
	return out
}

func fromStripeLineItem(li *stripelib.LineItem) LineItem {
	item := LineItem{
		Description: strings.TrimSpace(li.Description),
		Currency:    string(li.Currency),
		Quantity:    li.Quantity,
	}
	if li.Price != nil {
		item.PriceID = li.Price.ID
		item.UnitAmount = li.Price.UnitAmount
		if li.Price.Product != nil {
			item.ProductID = li.Price.Product.ID
			item.ProductName = strings.TrimSpace(li.Price.Product.Name)
		}
	}
	return item
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripelib.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripelib.ErrorCodeResourceMissing {
			return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return fmt.Errorf("%s: %w", op, &ProviderError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Status:  stripeErr.HTTPStatusCode,
		})
	}
	return fmt.Errorf("%s: %w", op, err)
}
