package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reignacare/service-booking/internal/domain/notification"
)

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	CarerID   uint64    `gorm:"index;not null"`
	Message   string    `gorm:"not null;size:1000"`
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (NotificationModel) TableName() string {
	return "notifications"
}

// GormNotificationRepository is the GORM-based implementation of NotificationRepository.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// FindByCarerID returns the carer's notifications, newest first.
func (r *GormNotificationRepository) FindByCarerID(ctx context.Context, carerID uint64, limit int) ([]*notification.Notification, error) {
	var models []NotificationModel
	if err := r.db.WithContext(ctx).
		Where("carer_id = ?", carerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", err)
	}

	notes := make([]*notification.Notification, len(models))
	for i, m := range models {
		notes[i] = notification.ReconstructNotification(m.ID, m.CarerID, m.Message, m.IsRead, m.CreatedAt)
	}
	return notes, nil
}

func toNotificationModel(n *notification.Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID(),
		CarerID:   n.CarerID(),
		Message:   n.Message(),
		IsRead:    n.IsRead(),
		CreatedAt: n.CreatedAt(),
	}
}

// Models lists every GORM model owned or read by this service, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&BookingModel{},
		&NotificationModel{},
		&PaymentSettlementModel{},
		&CarerModel{},
		&ClientModel{},
	}
}
