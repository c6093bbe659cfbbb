// Package handler exposes the mint controller over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/mint/models"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/requestcontext"
)

// Service defines the mint operations consumed by the handler.
type Service interface {
	Mint(ctx context.Context, identity id.Identity, quantity, payment uint64) (*models.Receipt, error)
	Pause(ctx context.Context)
	Unpause(ctx context.Context)
	SetBaseURI(ctx context.Context, baseURI string) error
	SetRoyalty(ctx context.Context, receiver string, bps uint16) error
	DeleteRoyalty(ctx context.Context)
	WithdrawProceeds(ctx context.Context, to id.Identity) (uint64, error)
	State(ctx context.Context) models.State
}

// Handler handles mint endpoints.
type Handler struct {
	logger *slog.Logger
	mint   Service
}

// New creates a mint Handler.
func New(mint Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, mint: mint}
}

// Register mounts the caller-facing routes. Callers must already be
// authenticated by the router's middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Post("/mint", h.handleMint)
	r.Get("/mint/state", h.handleState)
}

// RegisterAdmin mounts the privileged routes behind the admin-token gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/mint/pause", h.handlePause)
	r.Post("/mint/unpause", h.handleUnpause)
	r.Put("/mint/base-uri", h.handleSetBaseURI)
	r.Put("/mint/royalty", h.handleSetRoyalty)
	r.Delete("/mint/royalty", h.handleDeleteRoyalty)
	r.Post("/mint/withdraw", h.handleWithdraw)
}

type mintRequest struct {
	Quantity uint64 `json:"quantity"`
	Payment  uint64 `json:"payment"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Caller(ctx)
	if caller.IsNull() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required"))
		return
	}

	req, ok := httputil.Decode[mintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.mint.Mint(ctx, caller, req.Quantity, req.Payment)
	if err != nil {
		h.logger.WarnContext(ctx, "mint rejected",
			"request_id", requestID,
			"identity", caller,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.mint.State(r.Context()))
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.mint.Pause(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	h.mint.Unpause(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type baseURIRequest struct {
	BaseURI string `json:"base_uri"`
}

func (h *Handler) handleSetBaseURI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[baseURIRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.mint.SetBaseURI(ctx, req.BaseURI); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type royaltyRequest struct {
	Receiver string `json:"receiver"`
	Bps      uint16 `json:"bps"`
}

func (h *Handler) handleSetRoyalty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[royaltyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.mint.SetRoyalty(ctx, req.Receiver, req.Bps); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteRoyalty(w http.ResponseWriter, r *http.Request) {
	h.mint.DeleteRoyalty(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	To string `json:"to"`
}

type withdrawResponse struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[withdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	recipient, err := id.ParseIdentity(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	amount, err := h.mint.WithdrawProceeds(ctx, recipient)
	if err != nil {
		h.logger.ErrorContext(ctx, "proceeds withdrawal failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawResponse{Amount: amount})
}
