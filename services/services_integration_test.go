package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoTrackAPI/internal/activity"
	"ecoTrackAPI/internal/challenge"
	"ecoTrackAPI/internal/points"
	"ecoTrackAPI/internal/profile"
)

// These tests run against a real Postgres database with schema.sql applied.
// They are skipped when no database is configured.

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping database tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	t.Cleanup(func() {
		_, err := pool.Exec(ctx, "DELETE FROM profiles WHERE email LIKE 'test%@example.com'")
		if err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
		pool.Close()
	})

	return pool
}

func createTestProfile(t *testing.T, users *UserService) *profile.Profile {
	t.Helper()

	suffix := uuid.New().String()[:8]
	p, err := users.CreateProfile(context.Background(), &profile.CreateProfileRequest{
		ClerkID:   "user_test_" + suffix,
		Email:     fmt.Sprintf("test+%s@example.com", suffix),
		Username:  "testuser_" + suffix,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err, "Profile should be created")
	return p
}

func createTestChallenge(t *testing.T, pool *pgxpool.Pool, category challenge.Category, target float64, reward int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO challenges (id, title, description, category, target_value, points_reward, is_active, created_at)
		VALUES ($1, $2, '', $3, $4, $5, true, NOW())
	`, id, "Test Challenge "+id.String()[:8], category, target, reward)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM challenges WHERE id = $1", id)
	})
	return id
}

func createTestReward(t *testing.T, pool *pgxpool.Pool, cost int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO rewards (id, name, description, category, points_cost, is_active, created_at)
		VALUES ($1, $2, '', 'voucher', $3, true, NOW())
	`, id, "Test Reward "+id.String()[:8], cost)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM rewards WHERE id = $1", id)
	})
	return id
}

func TestLedgerAppendUpdatesBalance(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	p := createTestProfile(t, users)

	_, err := ledger.Append(ctx, p.ID, 100, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, p.ID, -30, points.TypeSpent, points.SourceManual, nil, nil)
	require.NoError(t, err)

	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 70, balance)

	history, err := ledger.GetHistory(ctx, p.ClerkID, 20)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first, and the sum of entries matches the balance.
	assert.Equal(t, -30, history[0].Points)
	assert.Equal(t, 100, history[1].Points)
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	p := createTestProfile(t, users)

	_, err := ledger.Append(ctx, p.ID, 50, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)

	_, err = ledger.Append(ctx, p.ID, -80, points.TypeSpent, points.SourceManual, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// The failed debit must leave neither a ledger entry nor a balance change.
	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	history, err := ledger.GetHistory(ctx, p.ClerkID, 20)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestJoinChallengeIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	challengeID := createTestChallenge(t, pool, challenge.CategoryTransport, 5, 50)

	enrollment, err := challenges.Join(ctx, p.ClerkID, challengeID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), enrollment.Progress)
	assert.False(t, enrollment.Completed)

	_, err = challenges.Join(ctx, p.ClerkID, challengeID)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	var count int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM user_challenges WHERE user_id = $1 AND challenge_id = $2", p.ID, challengeID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChallengeCompletionAwardsPointsOnce(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	challengeID := createTestChallenge(t, pool, challenge.CategoryEnergy, 3, 50)

	_, err := challenges.Join(ctx, p.ClerkID, challengeID)
	require.NoError(t, err)

	// Cross the target in one step.
	enrollment, err := challenges.RecordProgress(ctx, p.ClerkID, challengeID, 3)
	require.NoError(t, err)
	assert.True(t, enrollment.Completed)
	require.NotNil(t, enrollment.CompletedAt)

	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	// Further progress on a completed challenge must not award again.
	_, err = challenges.RecordProgress(ctx, p.ClerkID, challengeID, 2)
	require.NoError(t, err)

	balance, err = ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	completed, err := challenges.CountCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestRecordProgressRejectsNegativeAmount(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	challengeID := createTestChallenge(t, pool, challenge.CategoryFood, 5, 25)

	_, err := challenges.Join(ctx, p.ClerkID, challengeID)
	require.NoError(t, err)

	_, err = challenges.RecordProgress(ctx, p.ClerkID, challengeID, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRedeemDebitsBalanceAndWritesLedger(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	rewards := NewRewardService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	rewardID := createTestReward(t, pool, 60)

	_, err := ledger.Append(ctx, p.ID, 100, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)

	redemption, err := rewards.Redeem(ctx, p.ClerkID, rewardID)
	require.NoError(t, err)
	assert.Equal(t, 60, redemption.PointsSpent)
	assert.Regexp(t, `^ECO-[0-9A-F]{10}$`, redemption.RedemptionCode)

	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	history, err := ledger.GetHistory(ctx, p.ClerkID, 20)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, -60, history[0].Points)
	assert.Equal(t, points.SourceRedemption, history[0].Source)

	// A second redemption the user cannot afford fails whole.
	_, err = rewards.Redeem(ctx, p.ClerkID, rewardID)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	balance, err = ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	redemptions, err := rewards.GetRedemptions(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Len(t, redemptions, 1)
}

func TestRedeemRegeneratesCodeOnCollision(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	rewards := NewRewardService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	rewardID := createTestReward(t, pool, 10)

	_, err := ledger.Append(ctx, p.ID, 50, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)

	// Occupy a code so the first generated one collides.
	takenCode := "ECO-0000000000"
	_, err = pool.Exec(ctx, `
		INSERT INTO user_rewards (id, user_id, reward_id, points_spent, redemption_code, status, redeemed_at)
		VALUES ($1, $2, $3, 10, $4, 'active', NOW())
	`, uuid.New(), p.ID, rewardID, takenCode)
	require.NoError(t, err)

	codes := []string{takenCode, "ECO-1111111111"}
	rewards.generateCode = func() (string, error) {
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code, nil
	}

	redemption, err := rewards.Redeem(ctx, p.ClerkID, rewardID)
	require.NoError(t, err, "collision should regenerate, not fail the redemption")
	assert.Equal(t, "ECO-1111111111", redemption.RedemptionCode)

	// The winning attempt still debits exactly once.
	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)
}

func TestRedeemUnknownReward(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	rewards := NewRewardService(pool, ledger, notifs)

	p := createTestProfile(t, users)

	_, err := rewards.Redeem(ctx, p.ClerkID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogActivityAwardsPointsAndEmission(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)
	achievements := NewAchievementService(pool, ledger, notifs)
	activities := NewActivityService(pool, ledger, challenges, achievements, notifs)

	p := createTestProfile(t, users)

	distance := 12.5
	resp, err := activities.LogActivity(ctx, p.ClerkID, &activity.LogActivityRequest{
		Category:     activity.CategoryTransport,
		ActivityType: "bus",
		DistanceKm:   &distance,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.PointsAwarded)
	assert.Equal(t, 1, resp.CurrentStreak)
	assert.InDelta(t, 0.089*12.5, resp.Activity.CO2Emission, 1e-9)

	summary, err := activities.GetDailySummary(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.InDelta(t, resp.Activity.CO2Emission, summary.TodayEmission, 1e-9)
	assert.InDelta(t, resp.Activity.CO2Emission, summary.ByCategory[activity.CategoryTransport], 1e-9)
}

func TestLogActivityRejectsUnknownCategory(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)
	achievements := NewAchievementService(pool, ledger, notifs)
	activities := NewActivityService(pool, ledger, challenges, achievements, notifs)

	p := createTestProfile(t, users)

	_, err := activities.LogActivity(ctx, p.ClerkID, &activity.LogActivityRequest{
		Category:     activity.Category("teleport"),
		ActivityType: "portal",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAchievementUnlockIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	challenges := NewChallengeService(pool, ledger, notifs)
	achievements := NewAchievementService(pool, ledger, notifs)
	activities := NewActivityService(pool, ledger, challenges, achievements, notifs)

	p := createTestProfile(t, users)

	_, err := activities.LogActivity(ctx, p.ClerkID, &activity.LogActivityRequest{
		Category:     activity.CategoryShopping,
		ActivityType: "groceries",
	})
	require.NoError(t, err)

	// LogActivity already ran one evaluation; rerunning against the same
	// history must unlock nothing new and award no second bonus.
	newlyEarned, err := achievements.Evaluate(ctx, p.ID, "activity_logged")
	require.NoError(t, err)
	assert.Empty(t, newlyEarned)

	var earnedCount int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM achievements WHERE user_id = $1 AND badge = 'First Steps'", p.ID).Scan(&earnedCount)
	require.NoError(t, err)
	assert.Equal(t, 1, earnedCount)

	// 10 for the activity plus the 10 point First Steps bonus.
	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 20, balance)
}

func TestCreateProfileRedelivery(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	p := createTestProfile(t, users)

	// A redelivered webhook must return the existing profile, not error.
	again, err := users.CreateProfile(ctx, &profile.CreateProfileRequest{
		ClerkID:  p.ClerkID,
		Email:    p.Email,
		Username: p.Username,
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}

func TestUpdateProfileNeverTouchesPoints(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	p := createTestProfile(t, users)

	_, err := ledger.Append(ctx, p.ID, 25, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)

	phone := "+15550100"
	updated, err := users.UpdateProfile(ctx, p.ClerkID, &profile.UpdateProfileRequest{
		FirstName: "Changed",
		Phone:     &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.FirstName)
	assert.Equal(t, 25, updated.TotalPoints)
}

func TestConcurrentRedemptionsSpendBalanceOnce(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserService(pool)
	ledger := NewLedgerService(pool)
	notifs := NewNotificationService(pool)
	rewards := NewRewardService(pool, ledger, notifs)

	p := createTestProfile(t, users)
	rewardID := createTestReward(t, pool, 100)

	// Balance affords the reward exactly once.
	_, err := ledger.Append(ctx, p.ID, 150, points.TypeEarned, points.SourceManual, nil, nil)
	require.NoError(t, err)

	const attempts = 5
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := rewards.Redeem(ctx, p.ClerkID, rewardID)
			results <- err
		}()
	}

	var succeeded, insufficient int
	for i := 0; i < attempts; i++ {
		select {
		case err := <-results:
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, ErrInsufficientPoints) {
				insufficient++
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for concurrent redemptions")
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one redemption should win")
	assert.Equal(t, attempts-1, insufficient)

	balance, err := ledger.GetBalance(ctx, p.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
}
