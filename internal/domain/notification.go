package domain

import (
	"net/url"
	"time"
)

// MaxCardBytes caps the serialized card size accepted per notification.
// Chat platforms reject interactive-card bodies above roughly this size;
// rejecting early keeps oversized payloads out of the queue and database.
const MaxCardBytes = 30 * 1024

// Priority controls queue ordering. High is processed first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification.
// A failed delivery is terminal: there is no retry state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusScheduled  Status = "scheduled"
)

// Notification is the core domain entity: one card destined for one
// webhook target.
type Notification struct {
	ID             string     `json:"id"`
	BatchID        *string    `json:"batch_id,omitempty"`
	Target         string     `json:"target"`
	Card           Card       `json:"card"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TargetHost extracts the host portion of the target URL for rate limiting
// and metric labels. Returns "" only for a malformed target, which
// validation prevents for anything that reached the database.
func (n *Notification) TargetHost() string {
	u, err := url.Parse(n.Target)
	if err != nil {
		return ""
	}
	return u.Host
}

// Batch groups multiple notifications created together.
type Batch struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Cancelled int       `json:"cancelled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateNotificationRequest is the inbound payload for a single notification.
type CreateNotificationRequest struct {
	Target      string     `json:"target"`
	Card        Card       `json:"card"`
	Priority    Priority   `json:"priority"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Validate checks the delivery envelope. Card content itself is never
// inspected; only its serialized size is bounded.
func (r *CreateNotificationRequest) Validate() error {
	if !ValidTarget(r.Target) {
		return ErrInvalidTarget
	}
	if !r.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if r.Card.IsEmpty() {
		return ErrEmptyCard
	}
	if r.Card.Size() > MaxCardBytes {
		return ErrCardTooLarge
	}
	return nil
}

// ValidTarget reports whether s is an absolute http or https URL with a host.
func ValidTarget(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CreateBatchRequest wraps a slice of notification requests.
type CreateBatchRequest struct {
	Notifications []CreateNotificationRequest `json:"notifications"`
}

// ListFilter holds query parameters for paginated notification listing.
type ListFilter struct {
	Status *Status
	Target *string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}
