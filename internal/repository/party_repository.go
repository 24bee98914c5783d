package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/platform/domain"
)

// CarerModel maps the carers table owned by the accounts service.
type CarerModel struct {
	ID         uint64   `gorm:"primaryKey;autoIncrement"`
	FullName   string   `gorm:"not null;size:255"`
	Email      string   `gorm:"uniqueIndex;not null;size:255"`
	ChargeRate *float64 `gorm:"type:numeric(8,2)"`
	FCMToken   *string  `gorm:"column:fcm_token;size:512"`
}

// TableName returns the table name for the GORM model.
func (CarerModel) TableName() string {
	return "carers"
}

// ClientModel maps the clients table owned by the accounts service.
type ClientModel struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement"`
	FullName string  `gorm:"not null;size:255"`
	Email    string  `gorm:"uniqueIndex;not null;size:255"`
	FCMToken *string `gorm:"column:fcm_token;size:512"`
}

// TableName returns the table name for the GORM model.
func (ClientModel) TableName() string {
	return "clients"
}

// GormPartyRepository reads carers and clients.
type GormPartyRepository struct {
	db *gorm.DB
}

// NewGormPartyRepository creates a new GormPartyRepository.
func NewGormPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

// FindCarer implements party.CarerDirectory.
func (r *GormPartyRepository) FindCarer(ctx context.Context, id uint64) (*party.Carer, error) {
	var model CarerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Carer", strconv.FormatUint(id, 10))
		}
		return nil, fmt.Errorf("failed to find carer: %w", err)
	}
	return &party.Carer{
		ID:         model.ID,
		FullName:   model.FullName,
		Email:      model.Email,
		ChargeRate: bookingDomain.QuantityFromPtr(model.ChargeRate),
		PushToken:  deref(model.FCMToken),
	}, nil
}

// UpdateCarerPushToken stores the carer's device token. An empty token clears it.
func (r *GormPartyRepository) UpdateCarerPushToken(ctx context.Context, id uint64, token string) error {
	var value *string
	if token != "" {
		value = &token
	}
	result := r.db.WithContext(ctx).Model(&CarerModel{}).Where("id = ?", id).Update("fcm_token", value)
	if result.Error != nil {
		return fmt.Errorf("failed to update carer push token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Carer", strconv.FormatUint(id, 10))
	}
	return nil
}

// FindClient implements party.ClientDirectory.
func (r *GormPartyRepository) FindClient(ctx context.Context, id uint64) (*party.Client, error) {
	var model ClientModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Client", strconv.FormatUint(id, 10))
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &party.Client{
		ID:        model.ID,
		FullName:  model.FullName,
		Email:     model.Email,
		PushToken: deref(model.FCMToken),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
