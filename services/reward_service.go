package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"ecoTrackAPI/internal/notification"
	"ecoTrackAPI/internal/points"
	"ecoTrackAPI/internal/reward"
	"ecoTrackAPI/middleware"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// RewardService serves the reward catalog and spends points against it.
// A redemption is one transaction: conditional debit, redemption row, ledger
// entry. Nothing survives a failed step.
type RewardService struct {
	db           *pgxpool.Pool
	ledger       *LedgerService
	notifService *NotificationService
	generateCode func() (string, error)
}

func NewRewardService(db *pgxpool.Pool, ledger *LedgerService, notifService *NotificationService) *RewardService {
	return &RewardService{
		db:           db,
		ledger:       ledger,
		notifService: notifService,
		generateCode: GenerateRedemptionCode,
	}
}

func (s *RewardService) ListActive(ctx context.Context) ([]*reward.Reward, error) {
	query := `
		SELECT id, name, description, category, points_cost, is_active, created_at
		FROM rewards
		WHERE is_active = true
		ORDER BY points_cost ASC
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*reward.Reward
	for rows.Next() {
		r := &reward.Reward{}
		err := rows.Scan(
			&r.ID, &r.Name, &r.Description, &r.Category,
			&r.PointsCost, &r.IsActive, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if rewards == nil {
		rewards = []*reward.Reward{}
	}

	return rewards, nil
}

// Redeem spends points on a reward. The balance check and the debit are a
// single conditional update, so two sessions racing on the same balance
// cannot both win a reward the user can only afford once. No automatic
// retry happens here: if the caller's context is cancelled mid-flight the
// transaction rolls back and the action is simply not applied.
func (s *RewardService) Redeem(ctx context.Context, clerkID string, rewardID uuid.UUID) (*reward.Redemption, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrRedemptionFailed, err)
	}
	defer tx.Rollback(ctx)

	var r reward.Reward
	rewardQuery := `
		SELECT id, name, points_cost, is_active
		FROM rewards
		WHERE id = $1
	`
	err = tx.QueryRow(ctx, rewardQuery, rewardID).Scan(&r.ID, &r.Name, &r.PointsCost, &r.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to load reward: %v", ErrRedemptionFailed, err)
	}
	if !r.IsActive {
		return nil, fmt.Errorf("%w: reward is not active", ErrNotFound)
	}

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to resolve user: %v", ErrRedemptionFailed, err)
	}

	// The ledger append carries the balance check: its conditional update
	// refuses to let total_points go negative. Zero rows there means the
	// user cannot afford the reward, and the rollback discards the entry.
	desc := fmt.Sprintf("Redeemed reward: %s", r.Name)
	_, err = s.ledger.AppendTx(ctx, tx, userID, -r.PointsCost, points.TypeSpent, points.SourceRedemption, &rewardID, &desc)
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			return nil, ErrInsufficientPoints
		}
		return nil, fmt.Errorf("%w: failed to debit points: %v", ErrRedemptionFailed, err)
	}

	redemption, err := s.insertRedemption(ctx, tx, userID, r)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", ErrRedemptionFailed, err)
	}

	middleware.RedemptionsTotal.Inc()
	log.Printf("Redeem: user %s redeemed %q for %d points (code %s)", clerkID, r.Name, r.PointsCost, redemption.RedemptionCode)

	s.notifService.Notify(userID, notification.TypeRewardRedeemed,
		"Reward redeemed",
		fmt.Sprintf("Your code for %q is %s.", r.Name, redemption.RedemptionCode),
		map[string]any{"redemption_code": redemption.RedemptionCode},
	)

	return redemption, nil
}

// insertRedemption writes the redemption row, regenerating the code on the
// (vanishingly rare) unique violation. The UNIQUE index on redemption_code
// is what makes uniqueness an invariant rather than a probability. Each
// attempt runs under a savepoint: a failed INSERT poisons an explicit
// transaction until a rollback, so without the savepoint a retried statement
// would only ever see SQLSTATE 25P02.
func (s *RewardService) insertRedemption(ctx context.Context, tx pgx.Tx, userID uuid.UUID, r reward.Reward) (*reward.Redemption, error) {
	insertQuery := `
		INSERT INTO user_rewards (id, user_id, reward_id, points_spent, redemption_code, status, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, user_id, reward_id, points_spent, redemption_code, status, redeemed_at
	`

	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to generate code: %v", ErrRedemptionFailed, err)
		}

		// Begin on a pgx.Tx opens a savepoint.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create savepoint: %v", ErrRedemptionFailed, err)
		}

		redemption := &reward.Redemption{}
		err = sp.QueryRow(ctx, insertQuery,
			uuid.New(), userID, r.ID, r.PointsCost, code, reward.StatusActive,
		).Scan(
			&redemption.ID, &redemption.UserID, &redemption.RewardID,
			&redemption.PointsSpent, &redemption.RedemptionCode,
			&redemption.Status, &redemption.RedeemedAt,
		)
		if err == nil {
			if err = sp.Commit(ctx); err != nil {
				return nil, fmt.Errorf("%w: failed to release savepoint: %v", ErrRedemptionFailed, err)
			}
			return redemption, nil
		}

		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return nil, fmt.Errorf("%w: failed to roll back savepoint: %v", ErrRedemptionFailed, rbErr)
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "redemption_code") {
			log.Printf("insertRedemption: code collision, regenerating (attempt %d)", attempt+1)
			continue
		}
		return nil, fmt.Errorf("%w: failed to create redemption: %v", ErrRedemptionFailed, err)
	}

	return nil, fmt.Errorf("%w: could not generate a unique redemption code", ErrRedemptionFailed)
}

// GenerateRedemptionCode returns a code like ECO-4F9A2C81D3, drawn from
// crypto/rand.
func GenerateRedemptionCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ECO-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// GetRedemptions lists the caller's redemption history, newest first.
func (s *RewardService) GetRedemptions(ctx context.Context, clerkID string) ([]*reward.Redemption, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	query := `
		SELECT id, user_id, reward_id, points_spent, redemption_code, status, redeemed_at
		FROM user_rewards
		WHERE user_id = $1
		ORDER BY redeemed_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []*reward.Redemption
	for rows.Next() {
		red := &reward.Redemption{}
		err := rows.Scan(
			&red.ID, &red.UserID, &red.RewardID, &red.PointsSpent,
			&red.RedemptionCode, &red.Status, &red.RedeemedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, red)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if redemptions == nil {
		redemptions = []*reward.Redemption{}
	}

	return redemptions, nil
}
