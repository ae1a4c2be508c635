package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ecoTrackAPI/internal/activity"
	"ecoTrackAPI/internal/badge"
	"ecoTrackAPI/internal/challenge"
	"ecoTrackAPI/internal/notification"
	"ecoTrackAPI/internal/points"
	"ecoTrackAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Points granted for logging any activity.
const activityLogPoints = 10

// Streak lengths worth a push notification.
var streakMilestones = map[int]bool{3: true, 7: true, 14: true, 30: true, 100: true}

// ActivityService is the entry point of the earning pipeline: a logged
// activity awards points, moves the streak, advances matching challenges and
// re-evaluates badges.
type ActivityService struct {
	db           *pgxpool.Pool
	ledger       *LedgerService
	challenges   *ChallengeService
	achievements *AchievementService
	notifService *NotificationService
}

func NewActivityService(db *pgxpool.Pool, ledger *LedgerService, challenges *ChallengeService, achievements *AchievementService, notifService *NotificationService) *ActivityService {
	return &ActivityService{
		db:           db,
		ledger:       ledger,
		challenges:   challenges,
		achievements: achievements,
		notifService: notifService,
	}
}

// challengeCategoryFor maps an activity category onto the challenge catalog's
// category enum.
func challengeCategoryFor(c activity.Category) challenge.Category {
	switch c {
	case activity.CategoryTransport:
		return challenge.CategoryTransport
	case activity.CategoryCooking:
		return challenge.CategoryFood
	case activity.CategoryEnergy:
		return challenge.CategoryEnergy
	default:
		return challenge.CategoryOther
	}
}

// LogActivity validates and persists the activity, then runs the downstream
// awards. The activity row, its ledger entry and the streak move commit
// together; challenge and badge evaluation run after the commit, each with
// its own atomic unit.
func (s *ActivityService) LogActivity(ctx context.Context, clerkID string, req *activity.LogActivityRequest) (*activity.LogActivityResponse, error) {
	if !activity.ValidCategory(req.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category)
	}
	if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must be non-negative", ErrInvalidInput)
	}
	if req.DistanceKm != nil && *req.DistanceKm < 0 {
		return nil, fmt.Errorf("%w: distance must be non-negative", ErrInvalidInput)
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	activityType := req.ActivityType
	if activityType == "" {
		activityType = string(req.Category)
	}
	co2 := utils.CalculateCO2(req.Category, activityType, req.DurationMinutes, req.DistanceKm)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := &activity.Activity{}
	insertQuery := `
		INSERT INTO activities (id, user_id, category, activity_type, duration_minutes, distance_km, co2_emission, notes, activity_date, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_DATE, NOW())
		RETURNING id, user_id, category, activity_type, duration_minutes, distance_km, co2_emission, notes, activity_date, logged_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		uuid.New(), userID, req.Category, activityType,
		req.DurationMinutes, req.DistanceKm, co2, req.Notes,
	).Scan(
		&a.ID, &a.UserID, &a.Category, &a.ActivityType, &a.DurationMinutes,
		&a.DistanceKm, &a.CO2Emission, &a.Notes, &a.ActivityDate, &a.LoggedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to log activity: %w", err)
	}

	desc := fmt.Sprintf("Logged %s activity", req.Category)
	_, err = s.ledger.AppendTx(ctx, tx, userID, activityLogPoints, points.TypeEarned, points.SourceActivity, &a.ID, &desc)
	if err != nil {
		return nil, fmt.Errorf("failed to award activity points: %w", err)
	}

	currentStreak, err := s.advanceStreakTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if streakMilestones[currentStreak] {
		s.notifService.Notify(userID, notification.TypeStreakMilestone,
			"Streak milestone!",
			fmt.Sprintf("%d days of logging in a row. Keep it up!", currentStreak),
			map[string]any{"streak": currentStreak},
		)
	}

	s.challenges.AdvanceForActivity(ctx, userID, challengeCategoryFor(req.Category), 1)

	if _, err := s.achievements.Evaluate(ctx, userID, badge.SignalActivityLogged); err != nil {
		// Badge evaluation re-runs on the next signal; the logged activity
		// itself is already durable.
		log.Printf("LogActivity: badge evaluation failed for user %s: %v", userID, err)
	}

	return &activity.LogActivityResponse{
		Activity:      a,
		PointsAwarded: activityLogPoints,
		CurrentStreak: currentStreak,
	}, nil
}

// advanceStreakTx moves the streak in a single conditional statement:
// a second log on the same day is a no-op, a log the day after the last one
// extends the streak, anything else restarts it at 1.
func (s *ActivityService) advanceStreakTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	query := `
		UPDATE profiles
		SET current_streak = CASE
				WHEN last_activity_date = CURRENT_DATE THEN current_streak
				WHEN last_activity_date = CURRENT_DATE - 1 THEN current_streak + 1
				ELSE 1
			END,
			longest_streak = GREATEST(longest_streak, CASE
				WHEN last_activity_date = CURRENT_DATE THEN current_streak
				WHEN last_activity_date = CURRENT_DATE - 1 THEN current_streak + 1
				ELSE 1
			END),
			last_activity_date = CURRENT_DATE,
			updated_at = NOW()
		WHERE id = $1
		RETURNING current_streak
	`

	var currentStreak int
	if err := tx.QueryRow(ctx, query, userID).Scan(&currentStreak); err != nil {
		return 0, fmt.Errorf("failed to advance streak: %w", err)
	}
	return currentStreak, nil
}

// GetDailySummary returns today's emissions against yesterday's with a
// per-category breakdown, the data behind the home screen cards.
func (s *ActivityService) GetDailySummary(ctx context.Context, clerkID string) (*activity.DailySummary, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	summary := &activity.DailySummary{
		ByCategory: make(map[activity.Category]float64),
	}

	query := `
		SELECT category, COALESCE(SUM(co2_emission), 0)
		FROM activities
		WHERE user_id = $1 AND activity_date = CURRENT_DATE
		GROUP BY category
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch today's activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category activity.Category
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan emission total: %w", err)
		}
		summary.ByCategory[category] = total
		summary.TodayEmission += total
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	yesterdayQuery := `
		SELECT COALESCE(SUM(co2_emission), 0)
		FROM activities
		WHERE user_id = $1 AND activity_date = CURRENT_DATE - 1
	`
	err = s.db.QueryRow(ctx, yesterdayQuery, userID).Scan(&summary.YesterdayEmission)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch yesterday's total: %w", err)
	}

	return summary, nil
}
