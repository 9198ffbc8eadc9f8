package transaction

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/middleware"
	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/response"
	"github.com/eventify/eventify-api/internal/pkg/validator"
)

// Handler handles transaction HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates transaction handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func actorFrom(r *http.Request) Actor {
	return Actor{
		ID:   middleware.GetUserID(r.Context()),
		Role: middleware.GetRole(r.Context()),
	}
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /transactions
// @Summary Buy tickets
// @Description Reserve seats, debit points and consume the coupon. The purchase waits for payment for two hours.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequest true "Purchase"
// @Success 201 {object} response.Response{data=Response}
// @Failure 400,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	t, err := h.service.Create(r.Context(), actorFrom(r), CreateInput{
		EventID:    uuid.MustParse(req.EventID),
		TierID:     uuid.MustParse(req.TicketTierID),
		Quantity:   req.Quantity,
		PointsUsed: req.PointsUsed,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ResponseFromEntity(t))
}

// Get handles GET /transactions/{id}
// @Summary Get transaction
// @Description Visible to the buyer and to the organizer of the event.
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=Response}
// @Failure 400,403,404,500 {object} response.Response
// @Router /transactions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// ListMine handles GET /transactions/my
// @Summary My purchases
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response{data=[]Response}
// @Failure 400,500 {object} response.Response
// @Router /transactions/my [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	items, total, err := h.service.ListMine(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filter.Normalize()
	response.WithMeta(w, ResponsesFromEntities(items), response.NewMeta(total, filter.Page, filter.Limit))
}

// ListForEvent handles GET /events/{eventId}/transactions
// @Summary Event purchases
// @Description Organizer view of the purchases for one of their events.
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param eventId path string true "Event ID"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response{data=[]Response}
// @Failure 400,403,404,500 {object} response.Response
// @Router /events/{eventId}/transactions [get]
func (h *Handler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		response.BadRequest(w, "Invalid event ID")
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	items, total, err := h.service.ListForEvent(r.Context(), actorFrom(r), eventID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filter.Normalize()
	response.WithMeta(w, ResponsesFromEntities(items), response.NewMeta(total, filter.Page, filter.Limit))
}

func parseFilter(w http.ResponseWriter, r *http.Request) (ListFilter, bool) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	if err := validator.ValidateVar(string(filter.Status), "tx_status"); err != nil {
		response.BadRequest(w, "Invalid transaction status")
		return filter, false
	}
	return filter, true
}

// UploadProof handles POST /transactions/{id}/upload-proof
// @Summary Upload payment proof
// @Description Moves the purchase to WAITING_CONFIRMATION.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body UploadProofRequest true "Proof URL"
// @Success 200 {object} response.Response{data=Response}
// @Failure 400,403,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions/{id}/upload-proof [post]
func (h *Handler) UploadProof(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UploadProofRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	t, err := h.service.UploadProof(r.Context(), actorFrom(r), id, req.ProofURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// ProofUploadURL handles POST /transactions/{id}/proof-upload-url
// @Summary Presigned proof upload URL
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body ProofUploadURLRequest true "File type"
// @Success 200 {object} response.Response{data=ProofUploadURLResponse}
// @Failure 400,403,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions/{id}/proof-upload-url [post]
func (h *Handler) ProofUploadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req ProofUploadURLRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	resp, err := h.service.ProofUploadURL(r.Context(), actorFrom(r), id, req.ContentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, resp)
}

// Accept handles PATCH /transactions/{id}/accept
// @Summary Accept payment
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=Response}
// @Failure 400,403,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions/{id}/accept [patch]
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Accept)
}

// Reject handles PATCH /transactions/{id}/reject
// @Summary Reject purchase
// @Description Releases the seats, refunds the points and restores the coupon.
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=Response}
// @Failure 400,403,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions/{id}/reject [patch]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

// Cancel handles PATCH /transactions/{id}/cancel
// @Summary Cancel purchase
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=Response}
// @Failure 400,403,404,409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /transactions/{id}/cancel [patch]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

type transitionFunc func(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	t, err := fn(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// writeError maps domain errors onto the HTTP taxonomy
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		seatsErr     *SeatsError
		statusErr    *StatusError
		forbiddenErr *ForbiddenError
	)

	switch {
	case errors.As(err, &seatsErr):
		response.Conflict(w, seatsErr.Error())
	case errors.As(err, &statusErr):
		response.Conflict(w, statusErr.Error())
	case errors.As(err, &forbiddenErr):
		response.Forbidden(w, forbiddenErr.Message)

	case errors.Is(err, ErrTransactionNotFound):
		response.NotFound(w, "Transaction not found")
	case errors.Is(err, event.ErrEventNotFound):
		response.NotFound(w, "Event not found")
	case errors.Is(err, event.ErrTierNotFound):
		response.NotFound(w, "Ticket tier not found")
	case errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, coupon.ErrCouponNotFound):
		response.NotFound(w, "Coupon not found")

	case errors.Is(err, coupon.ErrCouponUsageLimit):
		response.Conflict(w, "Coupon usage limit reached")

	case errors.Is(err, ErrInsufficientPoints):
		response.BadRequest(w, "Insufficient points balance")
	case errors.Is(err, coupon.ErrCouponExpired):
		response.BadRequest(w, "Coupon has expired")
	case errors.Is(err, coupon.ErrCouponInactive):
		response.BadRequest(w, "Coupon is not available")
	case errors.Is(err, coupon.ErrCouponWrongEvent):
		response.BadRequest(w, "This coupon is not valid for this event")
	case errors.Is(err, ErrProofNotFound):
		response.BadRequest(w, "Payment proof file not found")
	case errors.Is(err, ErrProofStorageMissing):
		response.BadRequest(w, "Proof uploads are not configured")
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(w, "Quantity must be at least 1 and points cannot be negative")

	default:
		logger.FromContext(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("transaction request failed")
		response.InternalError(w)
	}
}
