package services

import (
	"context"
	"log"
	"sync"
	"time"

	"ecoTrackAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher pushes stored notifications out through the
// configured provider using a small worker pool.
type NotificationDispatcher struct {
	service      *NotificationService
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *notification.Notification
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(service *NotificationService) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		service:  service,
		workers:  5,
		jobQueue: make(chan *notification.Notification, 100),
		stopChan: make(chan struct{}),
	}

	dispatcher.startWorkers()
	return dispatcher
}

func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case notif := <-d.jobQueue:
			d.process(notif)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) process(notif *notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.pushProvider == nil {
		// In-app only; nothing to push.
		d.service.markStatus(ctx, notif.ID, notification.StatusSent)
		return
	}

	tokens, err := d.service.deviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("dispatcher: failed to load tokens for user %s: %v", notif.UserID, err)
		d.service.markStatus(ctx, notif.ID, notification.StatusFailed)
		return
	}

	if err := d.pushProvider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
		log.Printf("dispatcher: push failed for user %s: %v", notif.UserID, err)
		d.service.markStatus(ctx, notif.ID, notification.StatusFailed)
		return
	}

	d.service.markStatus(ctx, notif.ID, notification.StatusSent)
}

// Dispatch queues a notification for delivery. Drops the push (leaving the
// stored notification pending) if the queue stays full.
func (d *NotificationDispatcher) Dispatch(notif *notification.Notification) {
	select {
	case d.jobQueue <- notif:
	case <-time.After(5 * time.Second):
		log.Printf("dispatcher: queue full, dropping push for notification %s", notif.ID)
	}
}

// Stop shuts the worker pool down and waits for in-flight jobs.
func (d *NotificationDispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
}
