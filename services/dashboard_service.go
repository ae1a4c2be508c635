package services

import (
	"context"

	"ecoTrackAPI/internal/badge"
	"ecoTrackAPI/internal/challenge"
	"ecoTrackAPI/internal/points"
	"ecoTrackAPI/internal/profile"
	"ecoTrackAPI/internal/reward"

	"github.com/google/uuid"
)

const dashboardHistoryWindow = 10

// Dashboard is everything the rewards screen renders in one payload.
type Dashboard struct {
	Profile       *profile.Summary                   `json:"profile"`
	Challenges    []*challenge.ChallengeWithProgress `json:"challenges"`
	Rewards       []*reward.Reward                   `json:"rewards"`
	Badges        []*badge.BadgeWithStatus           `json:"badges"`
	RecentHistory []*points.Entry                    `json:"recent_history"`
}

// DashboardService is a read/compose layer over the other services. It holds
// no authoritative state; join and redeem are forwarded and the view is
// rebuilt from scratch after each successful mutation.
type DashboardService struct {
	users        *UserService
	challenges   *ChallengeService
	rewards      *RewardService
	achievements *AchievementService
	ledger       *LedgerService
}

func NewDashboardService(users *UserService, challenges *ChallengeService, rewards *RewardService, achievements *AchievementService, ledger *LedgerService) *DashboardService {
	return &DashboardService{
		users:        users,
		challenges:   challenges,
		rewards:      rewards,
		achievements: achievements,
		ledger:       ledger,
	}
}

// GetDashboard rebuilds the full view. Safe to call repeatedly; it performs
// reads only.
func (s *DashboardService) GetDashboard(ctx context.Context, clerkID string) (*Dashboard, error) {
	summary, err := s.users.GetSummary(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	challenges, err := s.challenges.ListWithProgress(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rewards, err := s.rewards.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	badges, err := s.achievements.ListBadges(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	history, err := s.ledger.GetHistory(ctx, clerkID, dashboardHistoryWindow)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Profile:       summary,
		Challenges:    challenges,
		Rewards:       rewards,
		Badges:        badges,
		RecentHistory: history,
	}, nil
}

// JoinChallenge forwards the join and returns the refreshed view.
func (s *DashboardService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*Dashboard, error) {
	if _, err := s.challenges.Join(ctx, clerkID, challengeID); err != nil {
		return nil, err
	}
	return s.GetDashboard(ctx, clerkID)
}

// RedeemReward forwards the redemption and returns it with the refreshed
// view.
func (s *DashboardService) RedeemReward(ctx context.Context, clerkID string, rewardID uuid.UUID) (*reward.Redemption, *Dashboard, error) {
	redemption, err := s.rewards.Redeem(ctx, clerkID, rewardID)
	if err != nil {
		return nil, nil, err
	}

	dashboard, err := s.GetDashboard(ctx, clerkID)
	if err != nil {
		// The redemption committed; surface it even if the refresh read
		// failed.
		return redemption, nil, nil
	}

	return redemption, dashboard, nil
}
