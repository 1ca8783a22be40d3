package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regbook/internal/registry"
	"regbook/internal/transport/http/shared"
	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
	"regbook/pkg/requestcontext"
)

// Service defines the asset directory operations the handler needs.
type Service interface {
	Register(ctx context.Context, registrationCode string, ownerID id.UserID) (*registry.Asset, error)
	Get(ctx context.Context, assetID id.AssetID) (*registry.Asset, error)
}

// Handler serves the asset directory endpoints.
type Handler struct {
	registry Service
	logger   *slog.Logger
}

func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the asset routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.handleRegister)
	r.Get("/assets/{assetID}", h.handleGet)
}

type registerRequest struct {
	RegistrationCode string `json:"registration_code"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	asset, err := h.registry.Register(ctx, req.RegistrationCode, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "asset registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, asset)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	asset, err := h.registry.Get(ctx, assetID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, asset)
}
