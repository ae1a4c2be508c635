package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ecoTrackAPI/internal/challenge"
	"ecoTrackAPI/internal/notification"
	"ecoTrackAPI/internal/points"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChallengeService tracks per-user enrollments against the challenge
// catalog. Completion is a one-way transition awarded exactly once; the
// completion flip and the reward entry commit in the same transaction.
type ChallengeService struct {
	db           *pgxpool.Pool
	ledger       *LedgerService
	notifService *NotificationService
}

func NewChallengeService(db *pgxpool.Pool, ledger *LedgerService, notifService *NotificationService) *ChallengeService {
	return &ChallengeService{
		db:           db,
		ledger:       ledger,
		notifService: notifService,
	}
}

func (s *ChallengeService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}

func (s *ChallengeService) ListActive(ctx context.Context) ([]*challenge.Challenge, error) {
	query := `
		SELECT id, title, description, category, target_value, points_reward, is_active, created_at
		FROM challenges
		WHERE is_active = true
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		c := &challenge.Challenge{}
		err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.Category,
			&c.TargetValue, &c.PointsReward, &c.IsActive, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if challenges == nil {
		challenges = []*challenge.Challenge{}
	}

	return challenges, nil
}

// ListWithProgress returns the active catalog joined with the caller's
// enrollment state.
func (s *ChallengeService) ListWithProgress(ctx context.Context, clerkID string) ([]*challenge.ChallengeWithProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			c.id, c.title, c.description, c.category, c.target_value,
			c.points_reward, c.is_active, c.created_at,
			uc.id IS NOT NULL AS joined,
			COALESCE(uc.progress, 0) AS progress,
			COALESCE(uc.completed, false) AS completed
		FROM challenges c
		LEFT JOIN user_challenges uc ON c.id = uc.challenge_id AND uc.user_id = $1
		WHERE c.is_active = true
		ORDER BY c.created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.ChallengeWithProgress
	for rows.Next() {
		c := &challenge.ChallengeWithProgress{}
		err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.Category, &c.TargetValue,
			&c.PointsReward, &c.IsActive, &c.CreatedAt,
			&c.Joined, &c.Progress, &c.Completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if challenges == nil {
		challenges = []*challenge.ChallengeWithProgress{}
	}

	return challenges, nil
}

// Join enrolls the user in an active challenge with zero progress. The
// unique constraint on (user_id, challenge_id) is the idempotency guard, so
// two devices racing on the same join cannot create a duplicate enrollment.
func (s *ChallengeService) Join(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE id = $1 AND is_active = true)`, challengeID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check challenge: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	query := `
		INSERT INTO user_challenges (id, user_id, challenge_id, progress, completed, joined_at)
		VALUES ($1, $2, $3, 0, false, NOW())
		ON CONFLICT (user_id, challenge_id) DO NOTHING
		RETURNING id, user_id, challenge_id, progress, completed, completed_at, joined_at
	`
	uc := &challenge.UserChallenge{}
	err = s.db.QueryRow(ctx, query, uuid.New(), userID, challengeID).Scan(
		&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.Progress,
		&uc.Completed, &uc.CompletedAt, &uc.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict path: the enrollment already exists.
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}

	log.Printf("Join: user %s joined challenge %s", clerkID, challengeID)
	return uc, nil
}

// RecordProgress adds amount to the enrollment's progress and, when the
// target is reached, flips completed and awards the challenge's points. The
// flip uses a conditional update on completed = false, so concurrent calls
// from multiple sessions award the reward at most once.
func (s *ChallengeService) RecordProgress(ctx context.Context, clerkID string, challengeID uuid.UUID, amount float64) (*challenge.UserChallenge, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: progress amount must be non-negative", ErrInvalidInput)
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	uc, completedNow, err := s.recordProgressForUser(ctx, userID, challengeID, amount)
	if err != nil {
		return nil, err
	}

	if completedNow {
		s.notifyCompletion(userID, challengeID)
	}

	return uc, nil
}

// recordProgressForUser is the shared path used by RecordProgress and by the
// activity pipeline, which already holds an internal user ID.
func (s *ChallengeService) recordProgressForUser(ctx context.Context, userID, challengeID uuid.UUID, amount float64) (*challenge.UserChallenge, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c challenge.Challenge
	err = tx.QueryRow(ctx, `SELECT id, title, target_value, points_reward FROM challenges WHERE id = $1`, challengeID).Scan(
		&c.ID, &c.Title, &c.TargetValue, &c.PointsReward,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("failed to get challenge: %w", err)
	}

	uc := &challenge.UserChallenge{}
	updateQuery := `
		UPDATE user_challenges
		SET progress = progress + $1
		WHERE user_id = $2 AND challenge_id = $3
		RETURNING id, user_id, challenge_id, progress, completed, completed_at, joined_at
	`
	err = tx.QueryRow(ctx, updateQuery, amount, userID, challengeID).Scan(
		&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.Progress,
		&uc.Completed, &uc.CompletedAt, &uc.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Not joined; nothing to track.
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("failed to update progress: %w", err)
	}

	completedNow := false
	if !uc.Completed && uc.Progress >= c.TargetValue {
		completeQuery := `
			UPDATE user_challenges
			SET completed = true, completed_at = NOW()
			WHERE id = $1 AND completed = false
			RETURNING completed_at
		`
		err = tx.QueryRow(ctx, completeQuery, uc.ID).Scan(&uc.CompletedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Another session completed it first; the award is theirs.
				uc.Completed = true
			} else {
				return nil, false, fmt.Errorf("failed to complete challenge: %w", err)
			}
		} else {
			uc.Completed = true
			completedNow = true

			desc := fmt.Sprintf("Completed challenge: %s", c.Title)
			_, err = s.ledger.AppendTx(ctx, tx, userID, c.PointsReward, points.TypeEarned, points.SourceChallenge, &challengeID, &desc)
			if err != nil {
				return nil, false, fmt.Errorf("failed to award challenge points: %w", err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return uc, completedNow, nil
}

func (s *ChallengeService) notifyCompletion(userID, challengeID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var title string
	err := s.db.QueryRow(ctx, `SELECT title FROM challenges WHERE id = $1`, challengeID).Scan(&title)
	if err != nil {
		log.Printf("notifyCompletion: failed to load challenge title: %v", err)
		return
	}

	s.notifService.Notify(userID, notification.TypeChallengeCompleted,
		"Challenge complete!",
		fmt.Sprintf("You finished %q. Points are in your balance.", title),
		map[string]any{"challenge_id": challengeID.String()},
	)
}

// AdvanceForActivity moves progress on every joined, active, not yet
// completed challenge matching the activity's category. Each enrollment gets
// its own transaction; one completion failing does not roll back another.
func (s *ChallengeService) AdvanceForActivity(ctx context.Context, userID uuid.UUID, category challenge.Category, amount float64) {
	query := `
		SELECT uc.challenge_id
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1 AND uc.completed = false
			AND c.is_active = true AND c.category = $2
	`
	rows, err := s.db.Query(ctx, query, userID, category)
	if err != nil {
		log.Printf("AdvanceForActivity: failed to list enrollments: %v", err)
		return
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		_, completedNow, err := s.recordProgressForUser(ctx, userID, id, amount)
		if err != nil {
			log.Printf("AdvanceForActivity: failed to advance challenge %s: %v", id, err)
			continue
		}
		if completedNow {
			s.notifyCompletion(userID, id)
		}
	}
}

// CountCompleted reports a user's lifetime completed challenges.
func (s *ChallengeService) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_challenges WHERE user_id = $1 AND completed = true`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed challenges: %w", err)
	}
	return count, nil
}
