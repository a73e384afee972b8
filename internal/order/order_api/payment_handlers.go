package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/utils"
)

// CreatePayment opens the gateway transaction for a fully valid order.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	h.Logger.Info("API", fmt.Sprintf("CreatePayment: identifier=%s", identifier))

	tx, err := h.OrderService.CreatePayment(r.Context(), identifier)
	if err != nil {
		h.writeServiceError(w, "CreatePayment", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Payment created", tx))
}

// GetPaymentStatus reports the order's reconciled payment state. Gateway
// outages come back as state "unknown", never as a failed request.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	o, err := h.OrderService.GetOrder(r.Context(), identifier)
	if err != nil {
		h.writeServiceError(w, "GetPaymentStatus", err)
		return
	}

	result := h.OrderService.PaymentStatus(r.Context(), o)
	payload := map[string]interface{}{
		"state":       result.State.String(),
		"paid":        h.OrderService.Paid(r.Context(), o),
		"transaction": result.Transaction,
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment status", payload))
}

// PaymentWebhook is the gateway's callback. The payload carries the
// order identifier we planted in the transaction metadata; the order is
// then reconciled against a fresh gateway lookup rather than trusting
// the callback body.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var callback struct {
		Identifier string `json:"identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&callback); err != nil || callback.Identifier == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", nil))
		return
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Payment callback for order %s", callback.Identifier))

	o, err := h.OrderService.Confirm(r.Context(), callback.Identifier)
	if err != nil {
		h.writeServiceError(w, "PaymentWebhook", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order reconciled", h.view(o)))
}
