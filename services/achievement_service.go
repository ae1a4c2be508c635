package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ecoTrackAPI/internal/activity"
	"ecoTrackAPI/internal/badge"
	"ecoTrackAPI/internal/notification"
	"ecoTrackAPI/internal/points"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AchievementService derives badge unlocks from a user's cumulative history.
// The badge catalog and its predicates live in internal/badge; this service
// only builds the snapshot and persists unlocks.
type AchievementService struct {
	db           *pgxpool.Pool
	ledger       *LedgerService
	notifService *NotificationService
}

func NewAchievementService(db *pgxpool.Pool, ledger *LedgerService, notifService *NotificationService) *AchievementService {
	return &AchievementService{
		db:           db,
		ledger:       ledger,
		notifService: notifService,
	}
}

// Evaluate checks every badge against the user's history and unlocks the
// ones whose predicates now hold. Idempotent: the unique constraint on
// (user_id, badge) makes a re-run a no-op for badges already earned.
func (s *AchievementService) Evaluate(ctx context.Context, userID uuid.UUID, signal badge.Signal) ([]badge.Badge, error) {
	snapshot, err := s.buildSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to build history snapshot: %w", err)
	}

	earned, err := s.earnedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []badge.Badge
	for _, b := range badge.Catalog() {
		if earned[b.Name] || !b.Earned(snapshot) {
			continue
		}

		if err := s.unlock(ctx, userID, b); err != nil {
			if errors.Is(err, ErrAlreadyEarned) {
				continue
			}
			return unlocked, err
		}

		log.Printf("Evaluate: user %s unlocked badge %q (signal %s)", userID, b.Name, signal)
		unlocked = append(unlocked, b)

		s.notifService.Notify(userID, notification.TypeBadgeUnlocked,
			"Badge unlocked!",
			fmt.Sprintf("You earned the %q badge.", b.Name),
			map[string]any{"badge": b.Name},
		)
	}

	return unlocked, nil
}

// unlock persists the earned record and, when the badge carries a bonus,
// appends the ledger entry in the same transaction. The insert-or-nothing
// keeps concurrent evaluations from double-awarding.
func (s *AchievementService) unlock(ctx context.Context, userID uuid.UUID, b badge.Badge) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var earnedID uuid.UUID
	insertQuery := `
		INSERT INTO achievements (id, user_id, badge, earned_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, badge) DO NOTHING
		RETURNING id
	`
	err = tx.QueryRow(ctx, insertQuery, uuid.New(), userID, b.Name).Scan(&earnedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyEarned
		}
		return fmt.Errorf("failed to record badge unlock: %w", err)
	}

	if b.PointsReward > 0 {
		desc := fmt.Sprintf("Unlocked badge: %s", b.Name)
		_, err = s.ledger.AppendTx(ctx, tx, userID, b.PointsReward, points.TypeEarned, points.SourceManual, &earnedID, &desc)
		if err != nil {
			return fmt.Errorf("failed to award badge points: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *AchievementService) earnedSet(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, `SELECT badge FROM achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earned badges: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan badge name: %w", err)
		}
		earned[name] = true
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return earned, nil
}

// buildSnapshot reads the history predicates run against. Read-only: the
// only mutation Evaluate performs is the unlock itself.
func (s *AchievementService) buildSnapshot(ctx context.Context, userID uuid.UUID) (badge.Snapshot, error) {
	snapshot := badge.Snapshot{
		ActivitiesByCategory: make(map[activity.Category]int),
	}

	rows, err := s.db.Query(ctx, `SELECT category, COUNT(*) FROM activities WHERE user_id = $1 GROUP BY category`, userID)
	if err != nil {
		return snapshot, fmt.Errorf("failed to count activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category activity.Category
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return snapshot, fmt.Errorf("failed to scan activity count: %w", err)
		}
		snapshot.ActivitiesByCategory[category] = count
		snapshot.TotalActivities += count
	}
	if err = rows.Err(); err != nil {
		return snapshot, fmt.Errorf("error iterating rows: %w", err)
	}

	query := `
		SELECT
			p.current_streak,
			p.longest_streak,
			(SELECT COUNT(*) FROM user_challenges uc WHERE uc.user_id = p.id AND uc.completed = true),
			(SELECT COALESCE(SUM(ph.points), 0) FROM points_history ph WHERE ph.user_id = p.id AND ph.points > 0)
		FROM profiles p
		WHERE p.id = $1
	`
	err = s.db.QueryRow(ctx, query, userID).Scan(
		&snapshot.CurrentStreak,
		&snapshot.LongestStreak,
		&snapshot.ChallengesCompleted,
		&snapshot.LifetimePointsEarned,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot, ErrNotFound
		}
		return snapshot, fmt.Errorf("failed to read profile stats: %w", err)
	}

	return snapshot, nil
}

// ListBadges returns the full catalog with the caller's earned status.
func (s *AchievementService) ListBadges(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT badge, earned_at FROM achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earned badges: %w", err)
	}
	defer rows.Close()

	earnedAt := make(map[string]badge.EarnedBadge)
	for rows.Next() {
		var eb badge.EarnedBadge
		if err := rows.Scan(&eb.Badge, &eb.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		earnedAt[eb.Badge] = eb
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	var badges []*badge.BadgeWithStatus
	for _, b := range badge.Catalog() {
		bws := &badge.BadgeWithStatus{Badge: b}
		if eb, ok := earnedAt[b.Name]; ok {
			bws.Unlocked = true
			t := eb.EarnedAt
			bws.UnlockedAt = &t
		}
		badges = append(badges, bws)
	}

	return badges, nil
}
