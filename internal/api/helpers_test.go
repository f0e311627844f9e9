package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecole-masso/checkout-api/internal/catalog"
	"github.com/ecole-masso/checkout-api/internal/config"
	"github.com/ecole-masso/checkout-api/internal/crm"
	"github.com/ecole-masso/checkout-api/internal/payments"
)

// The live catalog entries used across handler tests.
const (
	priceIntro    = "price_1RyfvYBuJldFrY1HUhhozNq1"
	priceMains    = "price_1RyfwWBuJldFrY1HvfnzyJjB"
	priceEnceinte = "price_1RyfwrBuJldFrY1H4sF9UUn9"
)

var allLivePrices = []string{
	"price_1RyfvYBuJldFrY1HUhhozNq1",
	"price_1RyfwWBuJldFrY1HvfnzyJjB",
	"price_1RyfwrBuJldFrY1H4sF9UUn9",
	"price_1Ryfx8BuJldFrY1H08EEYsQj",
	"price_1RyfxNBuJldFrY1HATKXKVTb",
	"price_1RyfxZBuJldFrY1H3QPLPA86",
	"price_1S0N4EBuJldFrY1HKI4Fd2Eq",
	"price_1Ryfy4BuJldFrY1HhpWVvLLh",
}

type fakeGateway struct {
	createReq  *payments.SessionRequest
	createResp *payments.Session
	createErr  error

	session *payments.Session
	getErr  error

	items    []payments.LineItem
	listErr  error
	listed   bool
	gotGetID string
}

func (f *fakeGateway) CreateSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	f.createReq = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &payments.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeGateway) GetSession(_ context.Context, sessionID string) (*payments.Session, error) {
	f.gotGetID = sessionID
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeGateway) ListLineItems(_ context.Context, _ string) ([]payments.LineItem, error) {
	f.listed = true
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

type fakeCRM struct {
	contactID string
	upsertErr error
	tagErr    error

	upserted    *crm.Contact
	appliedTags []string
}

func (f *fakeCRM) UpsertContact(_ context.Context, contact crm.Contact) (string, error) {
	f.upserted = &contact
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	return f.contactID, nil
}

func (f *fakeCRM) ApplyTags(_ context.Context, _ string, tags []string) []crm.TagOutcome {
	f.appliedTags = append(f.appliedTags, tags...)
	outcomes := make([]crm.TagOutcome, 0, len(tags))
	for _, tag := range tags {
		outcomes = append(outcomes, crm.TagOutcome{Tag: tag, Err: f.tagErr})
	}
	return outcomes
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:      ":0",
		StripeSecretKey: "sk_test_123",
		GHLAPIKey:       "ghl_key",
		GHLLocationID:   "loc_1",
		Coupon3ID:       "COUPON_3",
		CouponAllID:     "COUPON_ALL",
		SuccessURL:      "https://shop.example.com/merci?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       "https://shop.example.com/masterclass",
		RateLimit:       1000,
		RateWindow:      time.Minute,
	}
}

func newTestDeps(gw *fakeGateway, contacts *fakeCRM) *Deps {
	return &Deps{
		Config:   testConfig(),
		Catalog:  catalog.Default(map[string]string{priceIntro: "price_intro_monthly"}),
		Payments: gw,
		CRM:      contacts,
	}
}

func serve(t *testing.T, deps *Deps, method, route string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	req := httptest.NewRequest(method, route, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}
