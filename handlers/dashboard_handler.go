package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoTrackAPI/middleware"
	"ecoTrackAPI/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard returns the profile, challenges, rewards, badges and recent
// points history for the authenticated user in a single response.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dashboard, err := h.dashboardService.GetDashboard(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch dashboard")
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}
