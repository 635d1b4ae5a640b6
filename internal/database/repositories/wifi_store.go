package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/mmolhoek/papertrail-sub003/internal/services/wifi"
)

// WiFiStore adapts the hotspot-setting and fallback-network repositories to
// the wifi.ConfigStore interface consumed by the connectivity core.
type WiFiStore struct {
	hotspot  *HotspotSettingRepository
	fallback *FallbackNetworkRepository
}

// NewWiFiStore creates a WiFiStore over the given database.
func NewWiFiStore(db *gorm.DB) *WiFiStore {
	return &WiFiStore{
		hotspot:  NewHotspotSettingRepository(db),
		fallback: NewFallbackNetworkRepository(db),
	}
}

// HotspotConfig returns the persisted hotspot override, or nil.
func (s *WiFiStore) HotspotConfig(ctx context.Context) (*wifi.HotspotConfig, error) {
	setting, err := s.hotspot.Get(ctx)
	if err != nil || setting == nil {
		return nil, err
	}
	return &wifi.HotspotConfig{
		SSID:      setting.SSID,
		Password:  setting.Password,
		UpdatedAt: setting.UpdatedAt,
	}, nil
}

// SaveHotspotConfig persists the hotspot override.
func (s *WiFiStore) SaveHotspotConfig(ctx context.Context, ssid, password string) (*wifi.HotspotConfig, error) {
	setting, err := s.hotspot.Upsert(ctx, ssid, password)
	if err != nil {
		return nil, err
	}
	return &wifi.HotspotConfig{
		SSID:      setting.SSID,
		Password:  setting.Password,
		UpdatedAt: setting.UpdatedAt,
	}, nil
}

// FallbackNetwork returns the persisted fallback record, or nil.
func (s *WiFiStore) FallbackNetwork(ctx context.Context) (*wifi.FallbackNetwork, error) {
	fallback, err := s.fallback.Get(ctx)
	if err != nil || fallback == nil {
		return nil, err
	}
	return &wifi.FallbackNetwork{
		SSID:    fallback.SSID,
		SavedAt: fallback.SavedAt,
	}, nil
}

// SaveFallbackNetwork replaces the fallback record.
func (s *WiFiStore) SaveFallbackNetwork(ctx context.Context, ssid string) error {
	return s.fallback.Save(ctx, ssid)
}

// ClearFallbackNetwork removes the fallback record.
func (s *WiFiStore) ClearFallbackNetwork(ctx context.Context) error {
	return s.fallback.Clear(ctx)
}
