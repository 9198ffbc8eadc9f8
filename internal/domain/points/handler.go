package points

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventify/eventify-api/internal/middleware"
	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/response"
)

// Handler handles points HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates points handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns points router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/me", h.Me)

	return r
}

// Me handles GET /points/me
// @Summary My points
// @Description Current balance and the grants that have not expired yet.
// @Tags Points
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=BalanceResponse}
// @Failure 404,500 {object} response.Response
// @Router /points/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("points balance failed")
		response.InternalError(w)
		return
	}

	response.OK(w, resp)
}
