package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ecoTrackAPI/internal/profile"
	"ecoTrackAPI/middleware"
	"ecoTrackAPI/services"
)

type UserHandler struct {
	userService        *services.UserService
	ledgerService      *services.LedgerService
	achievementService *services.AchievementService
}

func NewUserHandler(userService *services.UserService, ledgerService *services.LedgerService, achievementService *services.AchievementService) *UserHandler {
	return &UserHandler{
		userService:        userService,
		ledgerService:      ledgerService,
		achievementService: achievementService,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.userService.GetByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Profile not found")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req profile.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to update profile")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteByClerkID(ctx, clerkID); err != nil {
		respondWithError(w, statusForError(err), "Failed to delete account")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *UserHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	badges, err := h.achievementService.ListBadges(ctx, clerkID)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch badges")
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

func (h *UserHandler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.ledgerService.GetHistory(ctx, clerkID, limit)
	if err != nil {
		respondWithError(w, statusForError(err), "Failed to fetch points history")
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// statusForError maps service errors onto HTTP statuses. Unknown errors are
// treated as transient persistence failures.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyJoined), errors.Is(err, services.ErrAlreadyEarned):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
