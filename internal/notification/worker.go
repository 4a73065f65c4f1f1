package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans alert notifications out to every push subscription mapped
// to the alert's tracking group.
type WorkerPool struct {
	size    int
	jobs    chan model.Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Alert, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.deliver(ctx, alert)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues one alert for delivery. Drops the alert when the queue is
// saturated rather than blocking the detector; the alert row itself is
// already persisted.
func (wp *WorkerPool) Dispatch(alert model.Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("notification queue full, dropping push for alert %s", alert.ID)
	}
}

// deliver fetches the group's subscriptions and sends the alert to each.
func (wp *WorkerPool) deliver(ctx context.Context, alert model.Alert) {
	if alert.GroupID == "" {
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_group_mapping sgm ON sgm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sgm.tracking_group_id = ?", alert.GroupID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("error fetching subscriptions for group %s: %v", alert.GroupID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("sending %d notifications for alert %s", len(subscriptions), alert.ID)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(alert.Message))
	}
}

// send pushes a single notification, pruning expired subscriptions.
func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
