package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ecoTrackAPI/internal/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationService persists in-app notifications and hands them to the
// dispatcher for push delivery.
type NotificationService struct {
	db         *pgxpool.Pool
	dispatcher *NotificationDispatcher
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	service := &NotificationService{db: db}
	service.dispatcher = NewNotificationDispatcher(service)
	return service
}

// SetPushProvider injects the FCM provider from main.go. Without a provider
// notifications are stored but not pushed.
func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.dispatcher.SetPushProvider(provider)
}

// Stop drains the push dispatcher. Called on shutdown.
func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

func (s *NotificationService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
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

// Notify creates and dispatches a notification on a background context.
// Callers fire and forget; a failed notification never fails the user
// action that produced it.
func (s *NotificationService) Notify(userID uuid.UUID, notifType notification.Type, title, body string, data map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		notif, err := s.Create(ctx, userID, notifType, title, body, data)
		if err != nil {
			log.Printf("Notify: failed to create notification for user %s: %v", userID, err)
			return
		}
		s.dispatcher.Dispatch(notif)
	}()
}

func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, notifType notification.Type, title, body string, data map[string]any) (*notification.Notification, error) {
	dataJSON, _ := json.Marshal(data)

	query := `
		INSERT INTO notifications (id, user_id, type, status, title, body, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, user_id, type, status, title, body, data, read_at, created_at
	`

	notif := &notification.Notification{}
	var dataStr []byte
	err := s.db.QueryRow(ctx, query,
		uuid.New(), userID, notifType, notification.StatusPending, title, body, dataJSON,
	).Scan(
		&notif.ID, &notif.UserID, &notif.Type, &notif.Status,
		&notif.Title, &notif.Body, &dataStr, &notif.ReadAt, &notif.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	json.Unmarshal(dataStr, &notif.Data)
	return notif, nil
}

func (s *NotificationService) List(ctx context.Context, clerkID string, limit int) (*notification.ListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, type, status, title, body, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*notification.Notification
	for rows.Next() {
		notif := &notification.Notification{}
		var dataStr []byte
		err := rows.Scan(
			&notif.ID, &notif.UserID, &notif.Type, &notif.Status,
			&notif.Title, &notif.Body, &dataStr, &notif.ReadAt, &notif.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		json.Unmarshal(dataStr, &notif.Data)
		notifs = append(notifs, notif)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if notifs == nil {
		notifs = []*notification.Notification{}
	}

	unread, err := s.unreadCountForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &notification.ListResponse{Notifications: notifs, UnreadCount: unread}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, clerkID string) (int, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return 0, err
	}
	return s.unreadCountForUser(ctx, userID)
}

func (s *NotificationService) unreadCountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, clerkID string, notificationID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RegisterDevice stores a push token; re-registering the same token is a
// no-op.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("%w: device token is required", ErrInvalidInput)
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, token) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *NotificationService) markStatus(ctx context.Context, notificationID uuid.UUID, status notification.Status) {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET status = $1 WHERE id = $2`, status, notificationID)
	if err != nil {
		log.Printf("markStatus: failed to update notification %s: %v", notificationID, err)
	}
}
