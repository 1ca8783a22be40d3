package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regbook/internal/transfer"
	"regbook/internal/transport/http/shared"
	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
	"regbook/pkg/requestcontext"
)

// Service defines the transfer coordinator operations the handler needs.
type Service interface {
	Initiate(ctx context.Context, assetID id.AssetID, senderID id.UserID, senderEmail, recipientEmail, recipientPhone string) (*transfer.Request, error)
	Accept(ctx context.Context, transferID id.TransferID, userID id.UserID, userEmail string) (*transfer.Request, error)
	Cancel(ctx context.Context, transferID id.TransferID, requesterID id.UserID) (*transfer.Request, error)
	Get(ctx context.Context, transferID id.TransferID, userID id.UserID, userEmail string) (*transfer.Request, error)
}

// Handler serves the owner-initiated handoff endpoints.
type Handler struct {
	transfers Service
	logger    *slog.Logger
}

func New(transfers Service, logger *slog.Logger) *Handler {
	return &Handler{transfers: transfers, logger: logger}
}

// Register mounts the transfer routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transfers", h.handleInitiate)
	r.Get("/transfers/{transferID}", h.handleGet)
	r.Post("/transfers/{transferID}/accept", h.handleAccept)
	r.Post("/transfers/{transferID}/cancel", h.handleCancel)
}

type initiateRequest struct {
	AssetID        string `json:"asset_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientPhone string `json:"recipient_phone,omitempty"`
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

	created, err := h.transfers.Initiate(ctx, assetID,
		requestcontext.UserID(ctx), requestcontext.UserEmail(ctx),
		req.RecipientEmail, req.RecipientPhone)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer initiation failed",
			"request_id", requestcontext.RequestID(ctx),
			"asset_id", assetID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.transfers.Accept(ctx, transferID,
		requestcontext.UserID(ctx), requestcontext.UserEmail(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "transfer accept failed",
			"request_id", requestcontext.RequestID(ctx),
			"transfer_id", transferID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.transfers.Cancel(ctx, transferID, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.transfers.Get(ctx, transferID,
		requestcontext.UserID(ctx), requestcontext.UserEmail(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, req)
}
