package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/funddesk/funddesk/internal/platform/httpx"
)

// Handler serves the audit log read endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, paging, err := h.service.Timeline(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Unable to load logs.")
		return
	}

	httpx.Success(w, "Logs fetched successfully", map[string]any{
		"logs":        entries,
		"page":        paging.Page,
		"limit":       paging.PerPage,
		"total":       paging.Total,
		"total_pages": paging.TotalPages,
	})
}
