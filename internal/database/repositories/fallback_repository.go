package repositories

import (
	"context"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/mmolhoek/papertrail-sub003/internal/database/models"
)

// FallbackNetworkRepository handles fallback-network data access. The table
// holds at most one row.
type FallbackNetworkRepository struct {
	db *gorm.DB
}

// NewFallbackNetworkRepository creates a new FallbackNetworkRepository.
func NewFallbackNetworkRepository(db *gorm.DB) *FallbackNetworkRepository {
	return &FallbackNetworkRepository{db: db}
}

// Get returns the fallback record, or nil when none is stored.
func (r *FallbackNetworkRepository) Get(ctx context.Context) (*models.FallbackNetwork, error) {
	var fallback models.FallbackNetwork
	result := r.db.WithContext(ctx).First(&fallback)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &fallback, nil
}

// Save replaces the fallback record with the given SSID.
func (r *FallbackNetworkRepository) Save(ctx context.Context, ssid string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.FallbackNetwork{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.FallbackNetwork{
			ID:      cuid.New(),
			SSID:    ssid,
			SavedAt: time.Now(),
		}).Error
	})
}

// Clear removes the fallback record.
func (r *FallbackNetworkRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.FallbackNetwork{}).Error
}
