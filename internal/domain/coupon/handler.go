package coupon

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/response"
	"github.com/eventify/eventify-api/internal/pkg/validator"
)

// Handler handles coupon HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates coupon handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns coupon router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/validate", h.Validate)

	return r
}

// Validate handles POST /coupons/validate
// @Summary Preview a coupon
// @Description Reports whether the coupon applies to the event and amount, and the resulting discount.
// @Tags Coupons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ValidateRequest true "Coupon and amount"
// @Success 200 {object} response.Response{data=ValidateResponse}
// @Failure 400,500 {object} response.Response
// @Router /coupons/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result, err := h.service.Validate(r.Context(), req.CouponCode, uuid.MustParse(req.EventID), req.Amount)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("code", req.CouponCode).Msg("coupon validation failed")
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}
