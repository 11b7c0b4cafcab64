package fundreq

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/funddesk/funddesk/internal/platform/httpx"
	"github.com/funddesk/funddesk/internal/shared"
)

// Handler manages the fund request endpoints for all three families.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	status   *StatusController
	guard    func(http.Handler) http.Handler
	validate *validator.Validate
}

// NewHandler builds a Handler instance. guard protects the mutating routes
// and may be nil.
func NewHandler(logger *slog.Logger, service *Service, status *StatusController, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		status:   status,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers the family-scoped routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{family}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			if h.guard != nil {
				r.Use(h.guard)
			}
			r.Post("/", h.create)
			r.Put("/status", h.updateStatus)
			r.Put("/{id}", h.edit)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var fields Fields
	if err := httpx.DecodeJSON(r, &fields); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	rec, err := h.service.Create(r.Context(), family, fields, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, titleLabel(family)+" created successfully", rec)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var fields Fields
	if err := httpx.DecodeJSON(r, &fields); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	rec, err := h.service.Edit(r.Context(), family, id, fields, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, titleLabel(family)+" updated successfully", rec)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), family, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, titleLabel(family)+" fetched successfully", rec)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	req := ListRequest{
		Status: PaymentStatus(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	}

	records, paging, err := h.service.List(r.Context(), family, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, "Requests fetched successfully", map[string]any{
		"requests":    records,
		"page":        paging.Page,
		"limit":       paging.PerPage,
		"total":       paging.Total,
		"total_pages": paging.TotalPages,
	})
}

type updateStatusPayload struct {
	RequestIDs    []int64 `json:"request_ids" validate:"required,min=1,dive,gt=0"`
	PaymentStatus string  `json:"payment_status" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var payload updateStatusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "request_ids and payment_status are required.")
		return
	}

	updated, err := h.status.UpdateStatus(r.Context(), family, payload.RequestIDs, PaymentStatus(payload.PaymentStatus), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Success(w, "Payment status updated successfully", map[string]any{
		"updated": updated,
	})
}

func (h *Handler) family(w http.ResponseWriter, r *http.Request) (Family, bool) {
	family, ok := ParseFamily(chi.URLParam(r, "family"))
	if !ok {
		httpx.Fail(w, http.StatusNotFound, "Unknown request family.")
		return "", false
	}
	return family, true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Identity, bool) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Authentication required.")
		return shared.Identity{}, false
	}
	return actor, true
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request ID.")
		return 0, false
	}
	return id, true
}

// fail maps a ledger error to an HTTP response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch KindOf(err) {
	case KindNotFound:
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case KindMissingField, KindInvalidAmount, KindInvalidPolicyCode,
		KindDuplicateRequest, KindAllocationExceeded, KindInvalidStatus, KindTooManyIDs:
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("fund request operation failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}

// titleLabel capitalises the family label for response messages.
func titleLabel(family Family) string {
	switch family {
	case FamilyAdvance:
		return "Advance payment request"
	case FamilySupplier:
		return "Supplier fund request"
	default:
		return "Expense fund request"
	}
}
