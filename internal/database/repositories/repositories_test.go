package repositories

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mmolhoek/papertrail-sub003/internal/database/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.HotspotSetting{}, &models.FallbackNetwork{}))
	return db
}

func TestHotspotSettingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHotspotSettingRepository(db)
	ctx := context.Background()

	setting, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, setting, "no override persisted yet")

	created, err := repo.Upsert(ctx, "MyPhone", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "MyPhone", created.SSID)

	// A second upsert updates the same row.
	updated, err := repo.Upsert(ctx, "OtherPhone", "different1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "OtherPhone", updated.SSID)

	var count int64
	require.NoError(t, db.Model(&models.HotspotSetting{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, repo.Delete(ctx))
	setting, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, setting)
}

func TestFallbackNetworkRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFallbackNetworkRepository(db)
	ctx := context.Background()

	fallback, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, fallback)

	require.NoError(t, repo.Save(ctx, "HomeWiFi"))
	fallback, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, "HomeWiFi", fallback.SSID)
	assert.False(t, fallback.SavedAt.IsZero())

	// Saving again replaces rather than accumulates.
	require.NoError(t, repo.Save(ctx, "OfficeWiFi"))
	var count int64
	require.NoError(t, db.Model(&models.FallbackNetwork{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	fallback, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OfficeWiFi", fallback.SSID)

	require.NoError(t, repo.Clear(ctx))
	fallback, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, fallback)

	// Clearing an empty table is fine.
	require.NoError(t, repo.Clear(ctx))
}

func TestWiFiStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewWiFiStore(db)
	ctx := context.Background()

	cfg, err := store.HotspotConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	saved, err := store.SaveHotspotConfig(ctx, "MyPhone", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "MyPhone", saved.SSID)
	assert.Equal(t, "secret123", saved.Password)

	cfg, err = store.HotspotConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "MyPhone", cfg.SSID)

	require.NoError(t, store.SaveFallbackNetwork(ctx, "HomeWiFi"))
	fallback, err := store.FallbackNetwork(ctx)
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, "HomeWiFi", fallback.SSID)

	require.NoError(t, store.ClearFallbackNetwork(ctx))
	fallback, err = store.FallbackNetwork(ctx)
	require.NoError(t, err)
	assert.Nil(t, fallback)
}
