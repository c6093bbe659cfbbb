// Package handler exposes the claim distributor over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/distributor/models"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/merkle"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/requestcontext"
)

// Service defines the distributor operations consumed by the handler.
type Service interface {
	SetRoot(ctx context.Context, round id.Round, root merkle.Hash) error
	Claim(ctx context.Context, identity id.Identity, amount uint64, round id.Round, proof []merkle.Hash) error
	Rescue(ctx context.Context, to id.Identity, amount uint64) error
	Status(ctx context.Context, identity id.Identity) (*models.ClaimStatus, error)
	Round(ctx context.Context) (*models.RoundState, error)
}

// Handler handles claim distribution endpoints.
type Handler struct {
	logger      *slog.Logger
	distributor Service
}

// New creates a distributor Handler.
func New(distributor Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, distributor: distributor}
}

// Register mounts the caller-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.handleClaim)
	r.Get("/claims/status", h.handleStatus)
	r.Get("/claims/round", h.handleRound)
}

// RegisterAdmin mounts the privileged routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/claims/root", h.handleSetRoot)
	r.Post("/claims/rescue", h.handleRescue)
}

type claimRequest struct {
	Amount uint64   `json:"amount"`
	Round  uint64   `json:"round"`
	Proof  []string `json:"proof"`
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Caller(ctx)
	if caller.IsNull() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required"))
		return
	}

	req, ok := httputil.Decode[claimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	proof := make([]merkle.Hash, 0, len(req.Proof))
	for _, raw := range req.Proof {
		node, err := merkle.ParseHash(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		proof = append(proof, node)
	}

	if err := h.distributor.Claim(ctx, caller, req.Amount, id.Round(req.Round), proof); err != nil {
		h.logger.WarnContext(ctx, "claim rejected",
			"request_id", requestID,
			"identity", caller,
			"round", req.Round,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"amount": req.Amount})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller.IsNull() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required"))
		return
	}

	status, err := h.distributor.Status(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.distributor.Round(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if round == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no distribution round published"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, round)
}

type setRootRequest struct {
	Round uint64 `json:"round"`
	Root  string `json:"root"`
}

func (h *Handler) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[setRootRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	root, err := merkle.ParseHash(req.Root)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.distributor.SetRoot(ctx, id.Round(req.Round), root); err != nil {
		h.logger.ErrorContext(ctx, "root publication failed",
			"request_id", requestID,
			"round", req.Round,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rescueRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleRescue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[rescueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	recipient, err := id.ParseIdentity(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.distributor.Rescue(ctx, recipient, req.Amount); err != nil {
		h.logger.ErrorContext(ctx, "rescue failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
