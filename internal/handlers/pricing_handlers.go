package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"fleet-analytics/internal/models"
	"fleet-analytics/pkg/logging"
)

var validate = validator.New()

// PricingRequest is the body of POST /api/pricing. Blank dates leave that
// side of the validity window open.
type PricingRequest struct {
	Destination  string  `json:"destination" validate:"required"`
	PricePerUnit float64 `json:"price_per_unit" validate:"gte=0"`
	ValidFrom    string  `json:"valid_from" validate:"omitempty,datetime=2006-01-02"`
	ValidTo      string  `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
}

func (p PricingRequest) entry() models.PricingEntry {
	entry := models.PricingEntry{
		Destination:  p.Destination,
		PricePerUnit: p.PricePerUnit,
	}
	// Layout already checked by validate
	if p.ValidFrom != "" {
		entry.ValidFrom, _ = time.Parse(models.DateLayout, p.ValidFrom)
	}
	if p.ValidTo != "" {
		entry.ValidTo, _ = time.Parse(models.DateLayout, p.ValidTo)
	}
	return entry
}

// ListPricing handles GET /api/pricing
func (h *DashboardHandler) ListPricing(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/pricing"
	defer h.observe(endpoint)()

	if !h.pricingEnabled(w, r) {
		return
	}

	entries, err := h.pricing.ListPricing(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"data":  entries,
		"total": len(entries),
	}, http.StatusOK)
}

// CreatePricing handles POST /api/pricing
func (h *DashboardHandler) CreatePricing(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/pricing"
	defer h.observe(endpoint)()

	if !h.pricingEnabled(w, r) {
		return
	}

	var req PricingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.sendError(w, r, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.sendError(w, r, validationMessage(err), http.StatusBadRequest)
		return
	}

	entry := req.entry()
	if err := h.pricing.CreatePricing(r.Context(), &entry); err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.logger.Info(r.Context(), "[API_PRICING_CREATED] Pricing entry created, reload to apply", logging.Fields{
		"id":          entry.ID,
		"destination": entry.Destination,
	})
	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, entry, http.StatusCreated)
}

// DeletePricing handles DELETE /api/pricing/{id}
func (h *DashboardHandler) DeletePricing(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/pricing/{id}"
	defer h.observe(endpoint)()

	if !h.pricingEnabled(w, r) {
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendError(w, r, "invalid pricing id", http.StatusBadRequest)
		return
	}

	if err := h.pricing.DeletePricing(r.Context(), id); err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "DELETE", "204")
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) pricingEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.pricing == nil {
		h.sendError(w, r, "pricing store is not configured", http.StatusNotFound)
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", jsonName(fe.Field())))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a YYYY-MM-DD date", jsonName(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", jsonName(fe.Field()), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonName(field string) string {
	switch field {
	case "PricePerUnit":
		return "price_per_unit"
	case "ValidFrom":
		return "valid_from"
	case "ValidTo":
		return "valid_to"
	default:
		return strings.ToLower(field)
	}
}
