// Package notification models the durable inbox entries shown to carers.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

// Notification is a carer-facing record of a booking event. It exists whether
// or not a push message reached the carer's device.
type Notification struct {
	id        uint64
	carerID   uint64
	message   string
	isRead    bool
	createdAt time.Time
}

// NewNotification creates an unread notification.
func NewNotification(carerID uint64, message string) (*Notification, error) {
	if carerID == 0 {
		return nil, domain.NewValidationError("carer ID is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.NewValidationError("notification message is required")
	}
	return &Notification{
		carerID:   carerID,
		message:   message,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructNotification rebuilds a Notification from persistence data.
func ReconstructNotification(id, carerID uint64, message string, isRead bool, createdAt time.Time) *Notification {
	return &Notification{id: id, carerID: carerID, message: message, isRead: isRead, createdAt: createdAt}
}

// ID returns the notification id.
func (n *Notification) ID() uint64 { return n.id }
func (n *Notification) CarerID() uint64 { return n.carerID }
func (n *Notification) Message() string { return n.message }
func (n *Notification) IsRead() bool { return n.isRead }
func (n *Notification) CreatedAt() time.Time { return n.createdAt }

// AssignID records the database generated identifier.
func (n *Notification) AssignID(id uint64) {
	if n.id == 0 {
		n.id = id
	}
}

// NotificationRepository reads a carer's inbox. Notifications are written
// together with the booking that caused them.
type NotificationRepository interface {
	FindByCarerID(ctx context.Context, carerID uint64, limit int) ([]*Notification, error)
}
