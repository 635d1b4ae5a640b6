// Package models contains the database model definitions.
// These models map directly to the SQLite tables that hold the device's
// persisted WiFi configuration.
package models

import (
	"time"
)

// HotspotSetting stores the user override of the mobile hotspot identity.
// At most one row exists; its absence means the compiled-in default applies.
// Table: hotspot_settings
type HotspotSetting struct {
	ID        string    `gorm:"column:id;primaryKey"`
	SSID      string    `gorm:"column:ssid"`
	Password  string    `gorm:"column:password"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (HotspotSetting) TableName() string { return "hotspot_settings" }

// FallbackNetwork records the network to return to if a hotspot attempt
// fails. At most one row exists at a time.
// Table: fallback_networks
type FallbackNetwork struct {
	ID      string    `gorm:"column:id;primaryKey"`
	SSID    string    `gorm:"column:ssid"`
	SavedAt time.Time `gorm:"column:saved_at"`
}

func (FallbackNetwork) TableName() string { return "fallback_networks" }
