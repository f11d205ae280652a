package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/platform/httpx"
)

// Handler exposes permission introspection endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers introspection routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/me", h.myPermissions)
	r.Post("/authz/check", h.check)
}

type checkRequest struct {
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	TargetID *int64 `json:"targetId"`
	FilialID *int64 `json:"filialId"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	perms, err := h.service.EffectivePermissions(r.Context(), p)
	if err != nil {
		h.logger.Error("list effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

// check answers an explicit authorization question. The response carries only
// the boolean; denial reasons stay in the audit trail.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "resource and action are required")
		return
	}

	p := PrincipalFromContext(r.Context())

	var allowed bool
	switch {
	case req.TargetID != nil:
		allowed = h.service.HasPermissionOnEntity(r.Context(), p, req.Resource, req.Action, *req.TargetID)
	case req.FilialID != nil:
		allowed = h.service.HasPermission(r.Context(), p, req.Resource, req.Action, []int64{*req.FilialID})
	default:
		allowed = h.service.HasPermission(r.Context(), p, req.Resource, req.Action, nil)
	}

	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}
