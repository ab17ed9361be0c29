package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/partner"
	"github.com/tour-availability/backend/internal/sync"
)

// writePartnerError maps partner client failures onto the API error envelope.
// Upstream rejections keep their status code in the details so operators can
// see what the partner actually said.
func writePartnerError(w http.ResponseWriter, err error) {
	if errors.Is(err, partner.ErrMissingCredentials) {
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrUpstream, "Partner API credentials are not configured")
		return
	}

	var apiErr *partner.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorWithDetails(w, http.StatusBadGateway, middleware.ErrUpstream,
			"Partner API rejected the request",
			map[string]any{"status_code": apiErr.StatusCode, "code": apiErr.Code, "message": apiErr.Message})
		return
	}

	middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, "Partner API request failed")
}

// PushPartnerAvailability pushes the merged occupied view to the partner
// synchronously, so an operator sees the outcome in the response. Requires
// a completed sync run.
func PushPartnerAvailability(syncService *sync.Service, pusher *partner.OccupancyPusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pusher == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrUpstream, "Partner API is not configured")
			return
		}

		report := syncService.LastReport()
		if report == nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "No sync run has completed yet")
			return
		}

		if err := pusher.PushOccupied(r.Context(), report.Occupied); err != nil {
			writePartnerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"pushed_slots": len(report.Occupied),
			"synced_at":    report.StartedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
}

// CreateDealRequest describes a promotional deal to register with the partner.
type CreateDealRequest struct {
	ExternalProductID  string `json:"external_product_id"`
	DealName           string `json:"deal_name"`
	From               string `json:"from"` // "2006-01-02"
	To                 string `json:"to"`
	DiscountPercentage int    `json:"discount_percentage"`
	NoticePeriodDays   int    `json:"notice_period_days"`
}

// CreatePartnerDeal registers a promotional deal with the partner.
func CreatePartnerDeal(client *partner.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.ExternalProductID == "" || req.DealName == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "external_product_id and deal_name are required")
			return
		}
		if req.DiscountPercentage <= 0 || req.DiscountPercentage >= 100 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "discount_percentage must be between 1 and 99")
			return
		}
		for _, day := range []string{req.From, req.To} {
			if _, err := time.Parse("2006-01-02", day); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "from and to must be YYYY-MM-DD")
				return
			}
		}

		params := partner.DealParams{
			ExternalProductID:  req.ExternalProductID,
			DealName:           req.DealName,
			DiscountPercentage: req.DiscountPercentage,
			NoticePeriodDays:   req.NoticePeriodDays,
		}
		params.DateRange.From = req.From
		params.DateRange.To = req.To

		deal, err := client.CreateDeal(r.Context(), params)
		if err != nil {
			writePartnerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(deal)
	}
}

// ListPartnerDeals lists the deals registered for a product.
func ListPartnerDeals(client *partner.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := r.URL.Query().Get("external_product_id")
		if productID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "external_product_id query parameter is required")
			return
		}

		deals, err := client.ListDeals(r.Context(), productID)
		if err != nil {
			writePartnerError(w, err)
			return
		}
		if deals == nil {
			deals = []partner.Deal{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deals)
	}
}

// DeletePartnerDeal removes a deal by its partner-side ID.
func DeletePartnerDeal(client *partner.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := client.DeleteDeal(r.Context(), id); err != nil {
			writePartnerError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
