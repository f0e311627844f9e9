package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ecole-masso/checkout-api/internal/apimetrics"
	"github.com/ecole-masso/checkout-api/internal/crm"
	"github.com/ecole-masso/checkout-api/internal/logging"
	"github.com/ecole-masso/checkout-api/internal/payments"
)

type reconcileRequest struct {
	SessionID string `json:"sessionId"`
}

type notPaidResponse struct {
	Status string `json:"status"`
}

type confirmResponse struct {
	OK     bool     `json:"ok"`
	Tagged []string `json:"tagged"`
	Email  string   `json:"email"`
}

type summaryItem struct {
	PriceID    string `json:"priceId"`
	ProductID  string `json:"productId,omitempty"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unitAmount"`
	Currency   string `json:"currency"`
	Quantity   int64  `json:"quantity"`
}

type summaryResponse struct {
	Status    string              `json:"status"`
	SessionID string              `json:"sessionId"`
	Email     string              `json:"email,omitempty"`
	Items     []summaryItem       `json:"items"`
	Currency  string              `json:"currency"`
	Subtotal  int64               `json:"subtotal"`
	Total     int64               `json:"total"`
	Discounts []payments.Discount `json:"discounts"`
}

// handleConfirm re-fetches a paid session and tags the buyer in the CRM:
// contact upsert by email, then one tag per purchased masterclass.
func handleConfirm(deps *Deps) http.Handler {
	return instrumented(RouteConfirm, func(w http.ResponseWriter, r *http.Request) int {
		sess, items, status := fetchPaidSession(deps, w, r)
		if sess == nil {
			return status
		}

		email := strings.TrimSpace(sess.Email)
		if email == "" {
			writeError(w, http.StatusBadRequest, "no_email_on_session", nil)
			return http.StatusBadRequest
		}

		contactID, err := deps.CRM.UpsertContact(r.Context(), crm.Contact{
			Email:     email,
			FirstName: sess.Name,
		})
		if err != nil {
			log.Error().Err(err).
				Str("request_id", logging.RequestIDFrom(r.Context())).
				Str("session_id", sess.ID).
				Msg("CRM contact upsert failed")
			writeError(w, http.StatusInternalServerError, "crm_upsert_failed", upstreamDetail(err))
			return http.StatusInternalServerError
		}
		if contactID == "" {
			writeError(w, http.StatusInternalServerError, "crm_no_contact_id", nil)
			return http.StatusInternalServerError
		}

		priceIDs := make([]string, 0, len(items))
		for _, item := range items {
			if item.PriceID != "" {
				priceIDs = append(priceIDs, item.PriceID)
			}
		}

		// Best-effort batch: per-tag failures are logged and counted but
		// never fail the request.
		tags := deps.Catalog.TagsFor(priceIDs)
		for _, outcome := range deps.CRM.ApplyTags(r.Context(), contactID, tags) {
			result := "applied"
			if !outcome.OK() {
				result = "failed"
			}
			apimetrics.CRMTagResults.WithLabelValues(result).Inc()
		}

		if tags == nil {
			tags = []string{}
		}
		writeJSON(w, http.StatusOK, confirmResponse{OK: true, Tagged: tags, Email: email})
		return http.StatusOK
	})
}

// handleSummary re-fetches a paid session and formats the purchase for
// the confirmation page. No CRM mutation.
func handleSummary(deps *Deps) http.Handler {
	return instrumented(RouteSummary, func(w http.ResponseWriter, r *http.Request) int {
		sess, items, status := fetchPaidSession(deps, w, r)
		if sess == nil {
			return status
		}

		resp := summaryResponse{
			Status:    "paid",
			SessionID: sess.ID,
			Email:     sess.Email,
			Items:     make([]summaryItem, 0, len(items)),
			Currency:  sess.Currency,
			Subtotal:  sess.AmountSubtotal,
			Total:     sess.AmountTotal,
			Discounts: sess.Discounts,
		}
		if resp.Discounts == nil {
			resp.Discounts = []payments.Discount{}
		}
		for _, item := range items {
			resp.Items = append(resp.Items, summaryItem{
				PriceID:    item.PriceID,
				ProductID:  item.ProductID,
				Name:       item.DisplayName(),
				UnitAmount: item.UnitAmount,
				Currency:   item.Currency,
				Quantity:   item.Quantity,
			})
		}

		writeJSON(w, http.StatusOK, resp)
		return http.StatusOK
	})
}

// fetchPaidSession parses the session ID and retrieves the session with
// its line items. It writes the response itself on every non-paid path
// and returns a nil session in that case.
func fetchPaidSession(deps *Deps, w http.ResponseWriter, r *http.Request) (*payments.Session, []payments.LineItem, int) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, nil, http.StatusBadRequest
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", nil)
		return nil, nil, http.StatusBadRequest
	}

	sess, err := deps.Payments.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", nil)
			return nil, nil, http.StatusNotFound
		}
		writeStripeError(w, r, err)
		return nil, nil, http.StatusInternalServerError
	}

	if !sess.PaymentComplete() {
		// Neutral answer, no CRM mutation: the buyer may still be paying.
		writeJSON(w, http.StatusOK, notPaidResponse{Status: "not_paid_yet"})
		return nil, nil, http.StatusOK
	}

	items, err := deps.Payments.ListLineItems(r.Context(), sessionID)
	if err != nil {
		writeStripeError(w, r, err)
		return nil, nil, http.StatusInternalServerError
	}
	return sess, items, http.StatusOK
}

// instrumented counts reconcile requests by route and final status.
func instrumented(route string, handler func(w http.ResponseWriter, r *http.Request) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := handler(w, r)
		apimetrics.ReconcileRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// upstreamDetail extracts the upstream response body from a CRM error so
// the caller sees what the CRM rejected.
func upstreamDetail(err error) any {
	var apiErr *crm.APIError
	if errors.As(err, &apiErr) {
		var decoded any
		if json.Unmarshal([]byte(apiErr.Body), &decoded) == nil {
			return decoded
		}
		return apiErr.Body
	}
	return nil
}
