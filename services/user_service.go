package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ecoTrackAPI/internal/profile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserService manages profile rows. Points and streak fields are owned by
// the ledger and activity pipelines; profile updates here never touch them.
type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	query := `
		INSERT INTO profiles (id, clerk_id, email, username, first_name, last_name, total_points, current_streak, longest_streak, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, NOW(), NOW())
		ON CONFLICT (clerk_id) DO NOTHING
		RETURNING id, clerk_id, email, username, first_name, last_name, phone, total_points, current_streak, longest_streak, last_activity_date, created_at, updated_at
	`

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query,
		uuid.New(), req.ClerkID, req.Email, req.Username, req.FirstName, req.LastName,
	).Scan(
		&p.ID, &p.ClerkID, &p.Email, &p.Username, &p.FirstName, &p.LastName,
		&p.Phone, &p.TotalPoints, &p.CurrentStreak, &p.LongestStreak,
		&p.LastActivityDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Webhook redelivery; the profile already exists.
			return s.GetByClerkID(ctx, req.ClerkID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Printf("CreateProfile: provisioned profile for clerk_id %s", req.ClerkID)
	return p, nil
}

func (s *UserService) GetByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error) {
	query := `
		SELECT id, clerk_id, email, username, first_name, last_name, phone, total_points, current_streak, longest_streak, last_activity_date, created_at, updated_at
		FROM profiles
		WHERE clerk_id = $1
	`

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&p.ID, &p.ClerkID, &p.Email, &p.Username, &p.FirstName, &p.LastName,
		&p.Phone, &p.TotalPoints, &p.CurrentStreak, &p.LongestStreak,
		&p.LastActivityDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// UpdateProfile applies the editable identity fields only. total_points and
// the streak columns are deliberately not in this statement.
func (s *UserService) UpdateProfile(ctx context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	query := `
		UPDATE profiles
		SET first_name = COALESCE(NULLIF($1, ''), first_name),
			last_name = COALESCE(NULLIF($2, ''), last_name),
			phone = COALESCE($3, phone),
			updated_at = NOW()
		WHERE clerk_id = $4
		RETURNING id, clerk_id, email, username, first_name, last_name, phone, total_points, current_streak, longest_streak, last_activity_date, created_at, updated_at
	`

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query, req.FirstName, req.LastName, req.Phone, clerkID).Scan(
		&p.ID, &p.ClerkID, &p.Email, &p.Username, &p.FirstName, &p.LastName,
		&p.Phone, &p.TotalPoints, &p.CurrentStreak, &p.LongestStreak,
		&p.LastActivityDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return p, nil
}

func (s *UserService) DeleteByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	log.Printf("DeleteByClerkID: removed profile for clerk_id %s", clerkID)
	return nil
}

// GetSummary is the compact profile view the dashboard embeds.
func (s *UserService) GetSummary(ctx context.Context, clerkID string) (*profile.Summary, error) {
	p, err := s.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	return &profile.Summary{
		Username:      p.Username,
		FirstName:     p.FirstName,
		TotalPoints:   p.TotalPoints,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}, nil
}
