package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regbook/internal/claim"
	"regbook/internal/transport/http/shared"
	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
	"regbook/pkg/requestcontext"
)

// Service defines the claim coordinator operations the handler needs.
type Service interface {
	Initiate(ctx context.Context, assetID id.AssetID, claimantID id.UserID, claimantEmail, claimantPhone, message string) (*claim.Claim, error)
	ListActiveForOwner(ctx context.Context, ownerID id.UserID) ([]*claim.Claim, error)
	Resolve(ctx context.Context, claimID id.ClaimID, actorID id.UserID, decision claim.Decision) (*claim.Claim, error)
	Get(ctx context.Context, claimID id.ClaimID, userID id.UserID) (*claim.Claim, error)
}

// Handler serves the claimant-initiated handoff endpoints.
type Handler struct {
	claims Service
	logger *slog.Logger
}

func New(claims Service, logger *slog.Logger) *Handler {
	return &Handler{claims: claims, logger: logger}
}

// Register mounts the claim routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.handleInitiate)
	r.Get("/claims", h.handleList)
	r.Get("/claims/{claimID}", h.handleGet)
	r.Post("/claims/{claimID}/resolve", h.handleResolve)
}

type initiateRequest struct {
	AssetID       string `json:"asset_id"`
	ClaimantPhone string `json:"claimant_phone,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	assetID, err := id.ParseAssetID(req.AssetID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.claims.Initiate(ctx, assetID,
		requestcontext.UserID(ctx), requestcontext.UserEmail(ctx),
		req.ClaimantPhone, req.Message)
	if err != nil {
		h.logger.WarnContext(ctx, "claim initiation failed",
			"request_id", requestcontext.RequestID(ctx),
			"asset_id", assetID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, created)
}

type listResponse struct {
	Claims []*claim.Claim `json:"claims"`
}

// handleList returns the authenticated user's inbox: active claims whose
// owner snapshot names them.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := h.claims.ListActiveForOwner(ctx, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if claims == nil {
		claims = []*claim.Claim{}
	}

	shared.WriteJSON(w, http.StatusOK, listResponse{Claims: claims})
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	decision, err := claim.ParseDecision(req.Decision)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resolved, err := h.claims.Resolve(ctx, claimID, requestcontext.UserID(ctx), decision)
	if err != nil {
		h.logger.WarnContext(ctx, "claim resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"claim_id", claimID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, resolved)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	c, err := h.claims.Get(ctx, claimID, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, c)
}
