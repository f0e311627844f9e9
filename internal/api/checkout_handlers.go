package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ecole-masso/checkout-api/internal/apimetrics"
	"github.com/ecole-masso/checkout-api/internal/catalog"
	"github.com/ecole-masso/checkout-api/internal/logging"
	"github.com/ecole-masso/checkout-api/internal/payments"
)

const installmentPlan = "3x"

type createSessionRequest struct {
	PriceIDs []string `json:"priceIds"`
	// Prices is accepted as an alternate field name for caller flexibility.
	Prices        []string `json:"prices"`
	CustomerEmail string   `json:"customerEmail"`
	Email         string   `json:"email"`
	Plan          string   `json:"plan"`
}

func (req *createSessionRequest) priceIDs() []string {
	if req.PriceIDs != nil {
		return req.PriceIDs
	}
	return req.Prices
}

func (req *createSessionRequest) email() string {
	if req.CustomerEmail != "" {
		return req.CustomerEmail
	}
	return req.Email
}

type createSessionResponse struct {
	URL string `json:"url"`
}

// handleCreateSession validates the selection, picks the automatic
// discount tier (or the installment plan) and creates a Stripe checkout
// session, returning its redirect URL.
func handleCreateSession(deps *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}

		submitted := req.priceIDs()
		if len(submitted) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_selection", nil)
			return
		}

		// Strict whitelist check: duplicates and unknown price IDs both
		// fail the whole batch.
		clean, rejected := deps.Catalog.Sanitize(submitted)
		if len(clean) != len(submitted) {
			writeError(w, http.StatusBadRequest, "unauthorized_price", map[string]any{
				"received": submitted,
				"rejected": rejected,
			})
			return
		}

		var sessReq payments.SessionRequest
		if strings.EqualFold(strings.TrimSpace(req.Plan), installmentPlan) {
			var ok bool
			sessReq, ok = buildInstallmentRequest(deps, w, clean)
			if !ok {
				return
			}
		} else {
			sessReq = buildCashRequest(deps, clean)
		}
		sessReq.CustomerEmail = strings.TrimSpace(req.email())
		sessReq.SuccessURL = deps.Config.SuccessURL
		sessReq.CancelURL = deps.Config.CancelURL

		packLogic := sessReq.Metadata["pack_logic"]
		sess, err := deps.Payments.CreateSession(r.Context(), sessReq)
		if err != nil {
			apimetrics.CheckoutSessionsTotal.WithLabelValues(sessReq.Mode, packLogic, "error").Inc()
			writeStripeError(w, r, err)
			return
		}
		apimetrics.CheckoutSessionsTotal.WithLabelValues(sessReq.Mode, packLogic, "created").Inc()

		log.Info().
			Str("request_id", logging.RequestIDFrom(r.Context())).
			Str("session_id", sess.ID).
			Str("mode", sessReq.Mode).
			Str("pack_logic", packLogic).
			Int("items", len(clean)).
			Msg("checkout session created")

		writeJSON(w, http.StatusOK, createSessionResponse{URL: sess.URL})
	})
}

// buildCashRequest assembles a one-time payment session. An automatic
// coupon and manual promotion codes are mutually exclusive on the Stripe
// side, so the promo-code flag is only set when no coupon applies.
func buildCashRequest(deps *Deps, clean []string) payments.SessionRequest {
	packLogic := deps.Catalog.PackLogicFor(len(clean))

	var coupon string
	switch packLogic {
	case catalog.Pack3:
		coupon = deps.Config.Coupon3ID
	case catalog.PackAll:
		coupon = deps.Config.CouponAllID
	}

	return payments.SessionRequest{
		Mode:                payments.ModePayment,
		PriceIDs:            clean,
		CouponID:            coupon,
		AllowPromotionCodes: coupon == "",
		Metadata: map[string]string{
			"selected_prices": strings.Join(clean, ","),
			"pack_logic":      string(packLogic),
		},
	}
}

// buildInstallmentRequest assembles a 3x subscription session for a
// single masterclass, remapping the one-time price to its monthly
// counterpart. The subscription is tagged for manual reconciliation;
// nothing here cancels it after the third charge.
func buildInstallmentRequest(deps *Deps, w http.ResponseWriter, clean []string) (payments.SessionRequest, bool) {
	if len(clean) != 1 {
		writeError(w, http.StatusBadRequest, "invalid_installment", "installment plan requires exactly one item")
		return payments.SessionRequest{}, false
	}

	source := clean[0]
	monthly, ok := deps.Catalog.InstallmentPriceFor(source)
	if !ok {
		writeError(w, http.StatusBadRequest, "no_installment_price", map[string]any{"price": source})
		return payments.SessionRequest{}, false
	}

	installmentMeta := map[string]string{
		"selected_prices":          source,
		"pack_logic":               string(catalog.PackSplit3),
		"installment_plan":         installmentPlan,
		"installment_source_price": source,
	}
	return payments.SessionRequest{
		Mode:                 payments.ModeSubscription,
		PriceIDs:             []string{monthly},
		Metadata:             installmentMeta,
		SubscriptionMetadata: installmentMeta,
	}, true
}

// writeStripeError surfaces the upstream error code/message for
// diagnostics. Single attempt, no retry.
func writeStripeError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).
		Str("request_id", logging.RequestIDFrom(r.Context())).
		Msg("stripe call failed")

	var provErr *payments.ProviderError
	if errors.As(err, &provErr) {
		writeError(w, http.StatusInternalServerError, "stripe_error", map[string]any{
			"code":    provErr.Code,
			"message": provErr.Message,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "stripe_error", nil)
}
