package services

import (
	"testing"
	"time"

	"vdi-fleet/backend/app/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepFlipsStaleOnlineDevices(t *testing.T) {
	env := newTestEnv(t)
	fresh := env.registerDevice(t, "aa:bb:cc:dd:ee:01")
	stale := env.registerDevice(t, "aa:bb:cc:dd:ee:02")

	require.NoError(t, env.deviceSvc.RecordContact(fresh.ID, nil))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Device{}).Where("id = ?", stale.ID).
		Updates(map[string]any{"last_contact": old, "status": models.DeviceOnline}).Error)

	sweeper := NewLivenessSweeper(env.devices, 10*time.Minute, time.Minute, zerolog.Nop())
	sweeper.Sweep()

	got, err := env.deviceSvc.Get(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceOffline, got.Status)

	got, err = env.deviceSvc.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceOnline, got.Status)

	// a second sweep has nothing left to do
	sweeper.Sweep()
	got, err = env.deviceSvc.Get(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceOffline, got.Status)
}
