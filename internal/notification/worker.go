package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON body delivered to the browser's service worker.
type Message struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon,omitempty"`
	Data  MessageData `json:"data"`
}

type MessageData struct {
	BookingID  string `json:"bookingId"`
	RoomNumber string `json:"roomNumber"`
}

// WorkerPool announces new bookings to every other subscribed user.
type WorkerPool struct {
	size    int
	jobs    chan *model.Booking
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	icon    string
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, icon string) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan *model.Booking, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		icon:    icon,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Push worker %d started", id)
	for {
		select {
		case b := <-wp.jobs:
			wp.sendNotificationsForBooking(ctx, b)
		case <-ctx.Done():
			log.Printf("Push worker %d shutting down", id)
			return
		}
	}
}

// Handle queues a push job for BookingCreated events and ignores the rest.
// It waits for a free slot no longer than ctx allows.
func (wp *WorkerPool) Handle(ctx context.Context, ev event.Event) error {
	if ev.Type != event.BookingCreated {
		return nil
	}
	b, ok := ev.Payload.(*model.Booking)
	if !ok || b == nil {
		return fmt.Errorf("unexpected %s payload %T", ev.Type, ev.Payload)
	}

	select {
	case wp.jobs <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("push queue full: %w", ctx.Err())
	}
}

func (wp *WorkerPool) sendNotificationsForBooking(ctx context.Context, b *model.Booking) {
	subscriptions, err := wp.store.SubscriptionsExcept(ctx, b.UserID)
	if err != nil {
		log.Printf("Error fetching subscriptions for booking %s: %v", b.ID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(wp.message(b))
	if err != nil {
		log.Printf("Error encoding push message for booking %s: %v", b.ID, err)
		return
	}

	log.Printf("Sending %d notifications for booking %s", len(subscriptions), b.ID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) message(b *model.Booking) Message {
	name := b.UserID
	if b.User != nil && b.User.Name != "" {
		name = b.User.Name
	}
	return Message{
		Title: fmt.Sprintf("New Booking: Room %s", b.RoomNumber),
		Body:  fmt.Sprintf("Booked by %s for %s", name, b.Purpose),
		Icon:  wp.icon,
		Data:  MessageData{BookingID: b.ID, RoomNumber: b.RoomNumber},
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	if !sub.Valid() {
		log.Printf("Skipping incomplete subscription of user %s", sub.UserID)
		return
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to user %s: %v", sub.UserID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription of user %s is expired. Deleting.", sub.UserID)
		if err := wp.store.DeleteSubscription(ctx, sub.UserID); err != nil {
			log.Printf("Failed to delete expired subscription of user %s: %v", sub.UserID, err)
		}
	}
}
