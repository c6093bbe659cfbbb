// Package handler exposes the staking engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mintgate/internal/staking/models"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/requestcontext"
)

// Service defines the staking operations consumed by the handler.
type Service interface {
	Stake(ctx context.Context, identity id.Identity, amount uint64) error
	Withdraw(ctx context.Context, identity id.Identity, amount uint64) error
	ClaimReward(ctx context.Context, identity id.Identity) (uint64, error)
	Exit(ctx context.Context, identity id.Identity) (uint64, error)
	SetRewardRate(ctx context.Context, newRate uint64) error
	Position(ctx context.Context, identity id.Identity) (*models.PositionView, error)
	Pool(ctx context.Context) (*models.PoolView, error)
}

// Handler handles staking endpoints.
type Handler struct {
	logger  *slog.Logger
	staking Service
}

// New creates a staking Handler.
func New(staking Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, staking: staking}
}

// Register mounts the caller-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/staking/stake", h.handleStake)
	r.Post("/staking/withdraw", h.handleWithdraw)
	r.Post("/staking/claim", h.handleClaim)
	r.Post("/staking/exit", h.handleExit)
	r.Get("/staking/position", h.handlePosition)
	r.Get("/staking/pool", h.handlePool)
}

// RegisterAdmin mounts the privileged routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/staking/reward-rate", h.handleSetRewardRate)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Identity, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNull() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required"))
		return id.NullIdentity, false
	}
	return caller, true
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleStake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[amountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.staking.Stake(ctx, caller, req.Amount); err != nil {
		h.logger.WarnContext(ctx, "stake rejected",
			"request_id", requestcontext.RequestID(ctx),
			"identity", caller,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[amountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.staking.Withdraw(ctx, caller, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rewardResponse struct {
	Reward uint64 `json:"reward"`
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	reward, err := h.staking.ClaimReward(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rewardResponse{Reward: reward})
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	reward, err := h.staking.Exit(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rewardResponse{Reward: reward})
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	position, err := h.staking.Position(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, position)
}

func (h *Handler) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.staking.Pool(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pool)
}

type rewardRateRequest struct {
	RewardRate uint64 `json:"reward_rate"`
}

func (h *Handler) handleSetRewardRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[rewardRateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.staking.SetRewardRate(ctx, req.RewardRate); err != nil {
		h.logger.ErrorContext(ctx, "reward rate update failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
