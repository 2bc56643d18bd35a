package queue

import "github.com/larknotice/card-dispatch/internal/domain"

// Item is the minimal data placed on the queue.
// Workers fetch the full Notification (including the card body) from the DB
// using the ID, keeping the queue lightweight and the stored data authoritative.
type Item struct {
	NotificationID string
	TargetHost     string
	Priority       domain.Priority
}
