package order_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/order"
	"ms-registration/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService) *Handler {
	return &Handler{
		OrderService: orderService,
		Logger:       logger.NewLogger(),
	}
}

// RegisterRoutes mounts the checkout API on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders/{identifier}", h.GetOrder)
	r.Put("/api/orders/{identifier}", h.UpdateStep)
	r.Post("/api/orders/{identifier}/steps/next", h.NextStep)
	r.Post("/api/orders/{identifier}/steps/previous", h.PreviousStep)
	r.Post("/api/orders/{identifier}/payment", h.CreatePayment)
	r.Get("/api/orders/{identifier}/payment", h.GetPaymentStatus)
	r.Post("/api/webhooks/payment", h.PaymentWebhook)
}

// orderView is the API shape of an order: the entity plus the derived
// wizard and pricing state the frontend drives off.
type orderView struct {
	*models.Order
	Steps          []string `json:"steps"`
	CurrentStep    string   `json:"current_step"`
	SumTickets     int      `json:"sum_tickets"`
	SumTotal       float64  `json:"sum_total"`
	DiscountAmount float64  `json:"discount_amount"`
}

func (h *Handler) view(o *models.Order) orderView {
	tab := h.OrderService.Table
	return orderView{
		Order:          o,
		Steps:          o.Steps(),
		CurrentStep:    o.CurrentStep(),
		SumTickets:     o.SumTickets(),
		SumTotal:       o.SumTotal(tab),
		DiscountAmount: o.DiscountAmount(tab),
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.OrderService.CreateOrder(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create order", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", h.view(o)))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	o, err := h.OrderService.GetOrder(r.Context(), identifier)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order not found: %v", err))
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", nil))
		return
	}

	// A ?step= query renders the order as seen from that wizard step.
	if step := r.URL.Query().Get("step"); step != "" {
		if err := o.SetCurrentStep(step); err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Unknown step", err.Error()))
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order found", h.view(o)))
}

func (h *Handler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	var form order.StepForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	o, validationErrs, err := h.OrderService.UpdateStep(r.Context(), identifier, form)
	if err != nil {
		h.writeServiceError(w, "UpdateStep", err)
		return
	}
	if validationErrs.Any() {
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Validation failed", validationErrs))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Step completed", h.view(o)))
}

func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, "next")
}

func (h *Handler) PreviousStep(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, "previous")
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, direction string) {
	identifier := chi.URLParam(r, "identifier")
	from := r.URL.Query().Get("from")

	o, err := h.OrderService.Navigate(r.Context(), identifier, from, direction)
	if err != nil {
		h.writeServiceError(w, "Navigate", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Step changed", h.view(o)))
}

// writeServiceError maps service failures onto status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", nil))
	case errors.Is(err, models.ErrUnknownStep):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Unknown step", err.Error()))
	case errors.Is(err, order.ErrPaymentExists), errors.Is(err, order.ErrPaymentInProgress):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Payment already exists", err.Error()))
	case errors.Is(err, order.ErrOrderInvalid):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Order is not valid", err.Error()))
	case errors.Is(err, order.ErrOrderNotPaid):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Order has not been paid", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", err.Error()))
	}
}
