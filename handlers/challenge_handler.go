package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ecoTrackAPI/middleware"
	"ecoTrackAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	dashboardService *services.DashboardService
}

func NewChallengeHandler(challengeService *services.ChallengeService, dashboardService *services.DashboardService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		dashboardService: dashboardService,
	}
}

func (h *ChallengeHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.ListWithProgress(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	dashboard, err := h.dashboardService.JoinChallenge(ctx, clerkID, challengeID)
	if err != nil {
		respondWithError(w, statusForError(err), joinErrorMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}

func joinErrorMessage(err error) string {
	if errors.Is(err, services.ErrAlreadyJoined) {
		return "You already joined this challenge"
	}
	return "Failed to join challenge"
}

type recordProgressRequest struct {
	Amount float64 `json:"amount"`
}

func (h *ChallengeHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	var req recordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	uc, err := h.challengeService.RecordProgress(ctx, clerkID, challengeID, req.Amount)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to record progress")
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}
