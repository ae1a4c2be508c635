package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ecoTrackAPI/internal/reward"
	"ecoTrackAPI/middleware"
	"ecoTrackAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type RewardHandler struct {
	rewardService    *services.RewardService
	dashboardService *services.DashboardService
}

func NewRewardHandler(rewardService *services.RewardService, dashboardService *services.DashboardService) *RewardHandler {
	return &RewardHandler{
		rewardService:    rewardService,
		dashboardService: dashboardService,
	}
}

func (h *RewardHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rewards, err := h.rewardService.ListActive(ctx)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch rewards")
		return
	}

	respondWithJSON(w, http.StatusOK, rewards)
}

type redeemResponse struct {
	Redemption *reward.Redemption  `json:"redemption"`
	Dashboard  *services.Dashboard `json:"dashboard,omitempty"`
}

func (h *RewardHandler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	rewardID, err := uuid.Parse(mux.Vars(r)["rewardID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid reward ID")
		return
	}

	redemption, dashboard, err := h.dashboardService.RedeemReward(ctx, clerkID, rewardID)
	if err != nil {
		respondWithError(w, statusForError(err), redeemErrorMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, redeemResponse{Redemption: redemption, Dashboard: dashboard})
}

func redeemErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrInsufficientPoints):
		return "Not enough points for this reward"
	case errors.Is(err, services.ErrNotFound):
		return "Reward not available"
	default:
		return "Failed to redeem reward"
	}
}

func (h *RewardHandler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	redemptions, err := h.rewardService.GetRedemptions(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch redemptions")
		return
	}

	respondWithJSON(w, http.StatusOK, redemptions)
}
