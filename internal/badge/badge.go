package badge

import (
	"time"

	"ecoTrackAPI/internal/activity"

	"github.com/google/uuid"
)

// Signal names the event that triggered an evaluation pass. Predicates always
// run against the full snapshot; the signal is carried for logging and for
// notifications.
type Signal string

const (
	SignalActivityLogged     Signal = "activity_logged"
	SignalChallengeCompleted Signal = "challenge_completed"
	SignalStreakUpdated      Signal = "streak_updated"
)

// Snapshot is a read-only view of a user's cumulative history. Predicates
// must not mutate it.
type Snapshot struct {
	TotalActivities      int
	ActivitiesByCategory map[activity.Category]int
	ChallengesCompleted  int
	CurrentStreak        int
	LongestStreak        int
	LifetimePointsEarned int
}

// Badge is a catalog entry with a typed unlock predicate. The catalog is
// fixed at compile time; earned records live in the achievements table.
type Badge struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	PointsReward int    `json:"points_reward"`
	Earned       func(Snapshot) bool `json:"-"`
}

type EarnedBadge struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Badge    string    `json:"badge" db:"badge"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

type BadgeWithStatus struct {
	Badge
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Catalog returns the full badge list in display order.
func Catalog() []Badge {
	return []Badge{
		{
			Name:         "First Steps",
			Description:  "Log your first activity",
			Icon:         "footprints",
			PointsReward: 10,
			Earned:       func(s Snapshot) bool { return s.TotalActivities >= 1 },
		},
		{
			Name:         "Green Commuter",
			Description:  "Log 10 transport activities",
			Icon:         "bus",
			PointsReward: 25,
			Earned: func(s Snapshot) bool {
				return s.ActivitiesByCategory[activity.CategoryTransport] >= 10
			},
		},
		{
			Name:         "Home Chef",
			Description:  "Log 10 cooking activities",
			Icon:         "utensils",
			PointsReward: 25,
			Earned: func(s Snapshot) bool {
				return s.ActivitiesByCategory[activity.CategoryCooking] >= 10
			},
		},
		{
			Name:         "Energy Saver",
			Description:  "Log 10 energy activities",
			Icon:         "zap",
			PointsReward: 25,
			Earned: func(s Snapshot) bool {
				return s.ActivitiesByCategory[activity.CategoryEnergy] >= 10
			},
		},
		{
			Name:         "Streak Starter",
			Description:  "Keep a 3 day logging streak",
			Icon:         "flame",
			PointsReward: 15,
			Earned:       func(s Snapshot) bool { return s.LongestStreak >= 3 },
		},
		{
			Name:         "Week of Green",
			Description:  "Keep a 7 day logging streak",
			Icon:         "calendar",
			PointsReward: 50,
			Earned:       func(s Snapshot) bool { return s.LongestStreak >= 7 },
		},
		{
			Name:         "Challenge Champion",
			Description:  "Complete 5 challenges",
			Icon:         "trophy",
			PointsReward: 75,
			Earned:       func(s Snapshot) bool { return s.ChallengesCompleted >= 5 },
		},
		{
			Name:         "Eco Warrior",
			Description:  "Log 50 activities",
			Icon:         "leaf",
			PointsReward: 100,
			Earned:       func(s Snapshot) bool { return s.TotalActivities >= 50 },
		},
		{
			Name:        "Point Collector",
			Description: "Earn 500 lifetime points",
			Icon:        "award",
			// No bonus points: awarding points for earning points would
			// feed back into the same predicate.
			Earned: func(s Snapshot) bool { return s.LifetimePointsEarned >= 500 },
		},
	}
}

// Lookup returns the catalog entry for a badge name.
func Lookup(name string) (Badge, bool) {
	for _, b := range Catalog() {
		if b.Name == name {
			return b, true
		}
	}
	return Badge{}, false
}
