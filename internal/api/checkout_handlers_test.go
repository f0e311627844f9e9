package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-masso/checkout-api/internal/payments"
)

func TestCreateSessionSingleItemNoDiscount(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp["url"])

	require.NotNil(t, gw.createReq)
	assert.Equal(t, payments.ModePayment, gw.createReq.Mode)
	assert.Equal(t, []string{priceIntro}, gw.createReq.PriceIDs)
	assert.Empty(t, gw.createReq.CouponID)
	assert.True(t, gw.createReq.AllowPromotionCodes)
	assert.Equal(t, "NONE", gw.createReq.Metadata["pack_logic"])
	assert.Equal(t, priceIntro, gw.createReq.Metadata["selected_prices"])
	assert.Equal(t, deps.Config.SuccessURL, gw.createReq.SuccessURL)
	assert.Equal(t, deps.Config.CancelURL, gw.createReq.CancelURL)
}

func TestCreateSessionThreeItemsPack3(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds":      []string{priceIntro, priceMains, priceEnceinte},
		"customerEmail": "buyer@example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, gw.createReq)
	assert.Equal(t, "COUPON_3", gw.createReq.CouponID)
	assert.False(t, gw.createReq.AllowPromotionCodes, "coupon and promo codes are mutually exclusive")
	assert.Equal(t, "PACK3_15", gw.createReq.Metadata["pack_logic"])
	assert.Equal(t, "buyer@example.com", gw.createReq.CustomerEmail)
}

func TestCreateSessionFullCatalogPackAll(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": allLivePrices,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, gw.createReq)
	assert.Equal(t, "COUPON_ALL", gw.createReq.CouponID)
	assert.False(t, gw.createReq.AllowPromotionCodes)
	assert.Equal(t, "ALL_30", gw.createReq.Metadata["pack_logic"])
}

func TestCreateSessionIntermediateSizeAllowsPromoCodes(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": allLivePrices[:4],
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, gw.createReq.CouponID)
	assert.True(t, gw.createReq.AllowPromotionCodes)
	assert.Equal(t, "NONE", gw.createReq.Metadata["pack_logic"])
}

func TestCreateSessionUnconfiguredCouponFallsThrough(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})
	deps.Config.Coupon3ID = ""

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro, priceMains, priceEnceinte},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, gw.createReq.CouponID)
	assert.True(t, gw.createReq.AllowPromotionCodes)
	// Metadata still records the tier even without a configured coupon.
	assert.Equal(t, "PACK3_15", gw.createReq.Metadata["pack_logic"])
}

func TestCreateSessionAlternateFieldNames(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"prices": []string{priceIntro},
		"email":  "alt@example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{priceIntro}, gw.createReq.PriceIDs)
	assert.Equal(t, "alt@example.com", gw.createReq.CustomerEmail)
}

func TestCreateSessionRejectsUnknownPrice(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro, "price_evil"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "unauthorized_price", resp["error"])
	assert.Nil(t, gw.createReq, "session-create API must never be called on validation failure")
}

func TestCreateSessionRejectsDuplicates(t *testing.T) {
	// The canonical variant treats a dedup length mismatch as a
	// validation failure rather than silently deduping.
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro, priceIntro, priceMains},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "unauthorized_price", resp["error"])
	assert.Nil(t, gw.createReq)
}

func TestCreateSessionRejectsEmptySelection(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	for _, body := range []map[string]any{
		{},
		{"priceIds": []string{}},
	} {
		rec := serve(t, deps, http.MethodPost, RouteCreateSession, body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeBody[map[string]any](t, rec)
		assert.Equal(t, "invalid_selection", resp["error"])
	}
	assert.Nil(t, gw.createReq)
}

func TestCreateSessionRejectsMalformedJSON(t *testing.T) {
	deps := newTestDeps(&fakeGateway{}, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, "not-an-object")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "invalid_request", resp["error"])
}

func TestCreateSessionInstallmentPlan(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro},
		"plan":     "3X",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, gw.createReq)
	assert.Equal(t, payments.ModeSubscription, gw.createReq.Mode)
	assert.Equal(t, []string{"price_intro_monthly"}, gw.createReq.PriceIDs)
	assert.False(t, gw.createReq.AllowPromotionCodes)
	assert.Equal(t, "SPLIT3", gw.createReq.Metadata["pack_logic"])
	assert.Equal(t, "3x", gw.createReq.Metadata["installment_plan"])
	assert.Equal(t, priceIntro, gw.createReq.Metadata["installment_source_price"])
	assert.Equal(t, gw.createReq.Metadata, gw.createReq.SubscriptionMetadata)
}

func TestCreateSessionInstallmentRequiresSingleItem(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro, priceMains},
		"plan":     "3x",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "invalid_installment", resp["error"])
	assert.Nil(t, gw.createReq)
}

func TestCreateSessionInstallmentUnmappedPrice(t *testing.T) {
	gw := &fakeGateway{}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceMains},
		"plan":     "3x",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "no_installment_price", resp["error"])
	assert.Nil(t, gw.createReq)
}

func TestCreateSessionStripeErrorSurfaced(t *testing.T) {
	gw := &fakeGateway{createErr: &payments.ProviderError{
		Code:    "coupon_expired",
		Message: "This coupon has expired.",
		Status:  400,
	}}
	deps := newTestDeps(gw, &fakeCRM{})

	rec := serve(t, deps, http.MethodPost, RouteCreateSession, map[string]any{
		"priceIds": []string{priceIntro},
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[struct {
		Error  string         `json:"error"`
		Detail map[string]any `json:"detail"`
	}](t, rec)
	assert.Equal(t, "stripe_error", resp.Error)
	assert.Equal(t, "coupon_expired", resp.Detail["code"])
	assert.Equal(t, "This coupon has expired.", resp.Detail["message"])
}

func TestCreateSessionCORSPreflight(t *testing.T) {
	deps := newTestDeps(&fakeGateway{}, &fakeCRM{})

	rec := serve(t, deps, http.MethodOptions, RouteCreateSession, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCreateSessionMethodNotAllowed(t *testing.T) {
	deps := newTestDeps(&fakeGateway{}, &fakeCRM{})

	rec := serve(t, deps, http.MethodGet, RouteCreateSession, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "method_not_allowed", resp["error"])
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per client IP")
}
