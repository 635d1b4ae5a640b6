package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/mmolhoek/papertrail-sub003/internal/database/models"
)

// HotspotSettingRepository handles hotspot-override data access.
type HotspotSettingRepository struct {
	db *gorm.DB
}

// NewHotspotSettingRepository creates a new HotspotSettingRepository.
func NewHotspotSettingRepository(db *gorm.DB) *HotspotSettingRepository {
	return &HotspotSettingRepository{db: db}
}

// Get returns the hotspot override, or nil when none is persisted.
func (r *HotspotSettingRepository) Get(ctx context.Context) (*models.HotspotSetting, error) {
	var setting models.HotspotSetting
	result := r.db.WithContext(ctx).First(&setting)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &setting, nil
}

// Upsert creates or updates the single hotspot-override row.
func (r *HotspotSettingRepository) Upsert(ctx context.Context, ssid, password string) (*models.HotspotSetting, error) {
	var setting models.HotspotSetting

	result := r.db.WithContext(ctx).First(&setting)
	if result.Error == gorm.ErrRecordNotFound {
		setting = models.HotspotSetting{
			ID:       cuid.New(),
			SSID:     ssid,
			Password: password,
		}
		if err := r.db.WithContext(ctx).Create(&setting).Error; err != nil {
			return nil, err
		}
		return &setting, nil
	} else if result.Error != nil {
		return nil, result.Error
	}

	setting.SSID = ssid
	setting.Password = password
	if err := r.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// Delete removes the hotspot override, restoring the compiled-in default.
func (r *HotspotSettingRepository) Delete(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.HotspotSetting{}).Error
}
