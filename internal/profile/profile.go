package profile

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	ClerkID          string     `json:"clerkId" db:"clerk_id"`
	Email            string     `json:"email" db:"email"`
	Username         string     `json:"username" db:"username"`
	FirstName        string     `json:"firstName" db:"first_name"`
	LastName         string     `json:"lastName" db:"last_name"`
	Phone            *string    `json:"phone,omitempty" db:"phone"`
	TotalPoints      int        `json:"totalPoints" db:"total_points"`
	CurrentStreak    int        `json:"currentStreak" db:"current_streak"`
	LongestStreak    int        `json:"longestStreak" db:"longest_streak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty" db:"last_activity_date"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// Summary is the read-only slice of the profile the dashboard shows. The
// points and streak fields are only ever written through ledger-applying
// operations, never from a profile update.
type Summary struct {
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	TotalPoints   int    `json:"totalPoints"`
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
}

type CreateProfileRequest struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=30"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type UpdateProfileRequest struct {
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}
