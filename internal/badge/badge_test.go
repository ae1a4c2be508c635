package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoTrackAPI/internal/activity"
)

func TestCatalogNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, b := range Catalog() {
		assert.False(t, seen[b.Name], "duplicate badge name: %s", b.Name)
		seen[b.Name] = true
		require.NotNil(t, b.Earned, "badge %s has no predicate", b.Name)
	}
}

func TestEmptySnapshotUnlocksNothing(t *testing.T) {
	snapshot := Snapshot{ActivitiesByCategory: map[activity.Category]int{}}
	for _, b := range Catalog() {
		assert.False(t, b.Earned(snapshot), "badge %s unlocked on empty snapshot", b.Name)
	}
}

func TestFirstStepsUnlocksOnFirstActivity(t *testing.T) {
	b, ok := Lookup("First Steps")
	require.True(t, ok)

	assert.False(t, b.Earned(Snapshot{TotalActivities: 0}))
	assert.True(t, b.Earned(Snapshot{TotalActivities: 1}))
	assert.True(t, b.Earned(Snapshot{TotalActivities: 42}))
}

func TestCategoryBadges(t *testing.T) {
	cases := []struct {
		badge    string
		category activity.Category
	}{
		{"Green Commuter", activity.CategoryTransport},
		{"Home Chef", activity.CategoryCooking},
		{"Energy Saver", activity.CategoryEnergy},
	}

	for _, tc := range cases {
		b, ok := Lookup(tc.badge)
		require.True(t, ok, tc.badge)

		below := Snapshot{ActivitiesByCategory: map[activity.Category]int{tc.category: 9}}
		at := Snapshot{ActivitiesByCategory: map[activity.Category]int{tc.category: 10}}
		other := Snapshot{ActivitiesByCategory: map[activity.Category]int{activity.CategoryShopping: 100}}

		assert.False(t, b.Earned(below), "%s unlocked below threshold", tc.badge)
		assert.True(t, b.Earned(at), "%s not unlocked at threshold", tc.badge)
		assert.False(t, b.Earned(other), "%s unlocked by wrong category", tc.badge)
	}
}

func TestStreakBadgesUseLongestStreak(t *testing.T) {
	starter, ok := Lookup("Streak Starter")
	require.True(t, ok)
	week, ok := Lookup("Week of Green")
	require.True(t, ok)

	// A broken current streak still counts once the longest streak was reached.
	s := Snapshot{CurrentStreak: 1, LongestStreak: 7}
	assert.True(t, starter.Earned(s))
	assert.True(t, week.Earned(s))

	assert.False(t, week.Earned(Snapshot{CurrentStreak: 6, LongestStreak: 6}))
}

func TestChallengeChampion(t *testing.T) {
	b, ok := Lookup("Challenge Champion")
	require.True(t, ok)

	assert.False(t, b.Earned(Snapshot{ChallengesCompleted: 4}))
	assert.True(t, b.Earned(Snapshot{ChallengesCompleted: 5}))
}

func TestPointCollectorAwardsNoBonus(t *testing.T) {
	b, ok := Lookup("Point Collector")
	require.True(t, ok)

	assert.Equal(t, 0, b.PointsReward)
	assert.False(t, b.Earned(Snapshot{LifetimePointsEarned: 499}))
	assert.True(t, b.Earned(Snapshot{LifetimePointsEarned: 500}))
}

func TestPredicatesAreStable(t *testing.T) {
	// Repeated evaluation of the same snapshot must give the same answer;
	// unlock idempotency depends on it.
	s := Snapshot{
		TotalActivities:      12,
		ActivitiesByCategory: map[activity.Category]int{activity.CategoryTransport: 12},
		CurrentStreak:        3,
		LongestStreak:        5,
	}
	for _, b := range Catalog() {
		first := b.Earned(s)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, b.Earned(s), "badge %s predicate not stable", b.Name)
		}
	}
}

func TestLookupUnknownBadge(t *testing.T) {
	_, ok := Lookup("No Such Badge")
	assert.False(t, ok)
}
