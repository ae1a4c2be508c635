package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ecoTrackAPI/internal/activity"
	"ecoTrackAPI/middleware"
	"ecoTrackAPI/services"
)

type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

func (h *ActivityHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	// Logging fans out into challenge and badge evaluation, so give it a
	// little more room than a plain read.
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req activity.LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.activityService.LogActivity(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to log activity")
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ActivityHandler) GetTodaySummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	summary, err := h.activityService.GetDailySummary(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch daily summary")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
