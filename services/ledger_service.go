package services

import (
	"context"
	"errors"
	"fmt"

	"ecoTrackAPI/internal/points"
	"ecoTrackAPI/middleware"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService owns the points_history table. Every point-affecting
// operation in the system goes through AppendTx so the entry and the cached
// profile balance move together in one transaction.
type LedgerService struct {
	db *pgxpool.Pool
}

func NewLedgerService(db *pgxpool.Pool) *LedgerService {
	return &LedgerService{db: db}
}

// AppendTx inserts a ledger entry and applies its delta to the profile's
// cached total inside the caller's transaction. The conditional update keeps
// total_points from ever going negative; a spend that would overdraw
// returns ErrInsufficientPoints and the caller is expected to roll back.
func (s *LedgerService) AppendTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int, entryType points.EntryType, source points.Source, sourceID *uuid.UUID, description *string) (*points.Entry, error) {
	entry := &points.Entry{}

	insertQuery := `
		INSERT INTO points_history (id, user_id, points, type, source, source_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, user_id, points, type, source, source_id, description, created_at
	`
	err := tx.QueryRow(ctx, insertQuery,
		uuid.New(), userID, delta, entryType, source, sourceID, description,
	).Scan(
		&entry.ID, &entry.UserID, &entry.Points, &entry.Type,
		&entry.Source, &entry.SourceID, &entry.Description, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	updateQuery := `
		UPDATE profiles
		SET total_points = total_points + $1, updated_at = NOW()
		WHERE id = $2 AND total_points + $1 >= 0
	`
	result, err := tx.Exec(ctx, updateQuery, delta, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to apply points delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrInsufficientPoints
	}

	if delta >= 0 {
		middleware.PointsEarned.Add(float64(delta))
	} else {
		middleware.PointsSpent.Add(float64(-delta))
	}

	return entry, nil
}

// Append opens its own transaction for standalone awards. Either the entry
// exists and the balance reflects it, or neither happened.
func (s *LedgerService) Append(ctx context.Context, userID uuid.UUID, delta int, entryType points.EntryType, source points.Source, sourceID *uuid.UUID, description *string) (*points.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := s.AppendTx(ctx, tx, userID, delta, entryType, source, sourceID, description)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, nil
}

// GetHistory returns the newest entries first, bounded by limit.
func (s *LedgerService) GetHistory(ctx context.Context, clerkID string, limit int) ([]*points.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	query := `
		SELECT id, user_id, points, type, source, source_id, description, created_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points history: %w", err)
	}
	defer rows.Close()

	var entries []*points.Entry
	for rows.Next() {
		entry := &points.Entry{}
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Points, &entry.Type,
			&entry.Source, &entry.SourceID, &entry.Description, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if entries == nil {
		entries = []*points.Entry{}
	}

	return entries, nil
}

// GetBalance reads the cached total. The ledger sum is the source of truth;
// the two are kept equal by AppendTx.
func (s *LedgerService) GetBalance(ctx context.Context, clerkID string) (int, error) {
	var balance int
	err := s.db.QueryRow(ctx, `SELECT total_points FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
