package services

import (
	"testing"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNormalizesIdentity(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.deviceSvc.Register(RegisterDeviceInput{MACAddress: "AA-BB-CC-DD-EE-FF", Hostname: "tc-01"})
	require.NoError(t, err)
	assert.Equal(t, "aabbccddeeff", d.ID)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", d.MACAddress)
	assert.Equal(t, models.DeviceProvisioning, d.Status)
}

func TestRegisterRejectsDuplicateMAC(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	// same hardware address in a different spelling
	_, err := env.deviceSvc.Register(RegisterDeviceInput{MACAddress: "AA-BB-CC-DD-EE-FF"})
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}

func TestRegisterRejectsMalformedMAC(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.deviceSvc.Register(RegisterDeviceInput{MACAddress: "not-a-mac"})
	assert.True(t, apperr.IsInvalidInput(err), "got %v", err)
}

func TestUpdateKeepsIdentityAndValidatesStatus(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	host := "tc-lobby"
	status := "online"
	updated, err := env.deviceSvc.Update(d.ID, UpdateDeviceInput{Hostname: &host, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "tc-lobby", updated.Hostname)
	assert.Equal(t, models.DeviceOnline, updated.Status)
	assert.Equal(t, d.MACAddress, updated.MACAddress)

	bad := "rebooting"
	_, err = env.deviceSvc.Update(d.ID, UpdateDeviceInput{Status: &bad})
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestUpdateUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	host := "x"
	_, err := env.deviceSvc.Update("missing", UpdateDeviceInput{Hostname: &host})
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteRefusedWhileDeploymentActive(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	img := env.completedImage(t, "base", "1.0")

	_, err := env.deploySvc.Deploy(img.ID, []string{d.ID}, models.MethodMedia, DeployOptions{}, "op")
	require.NoError(t, err)

	err = env.deviceSvc.Delete(d.ID)
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}

func TestDeleteRemovesQueueAndDirective(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	_, err := env.beatSvc.Enqueue(d.ID, "ping", nil, "op")
	require.NoError(t, err)
	require.NoError(t, env.boot.Assign(d.MACAddress, "dep-old", "http://fleet/images/old.img"))

	require.NoError(t, env.deviceSvc.Delete(d.ID))

	_, err = env.deviceSvc.Get(d.ID)
	assert.True(t, apperr.IsNotFound(err))

	cmds, err := env.beatSvc.ListCommands(d.ID, "")
	require.NoError(t, err)
	assert.Empty(t, cmds)

	directive, err := env.boot.Lookup(d.MACAddress)
	require.NoError(t, err)
	assert.Empty(t, directive)
}

func TestAddressReservationFollowsDeviceLifecycle(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.deviceSvc.Register(RegisterDeviceInput{
		MACAddress: "aa:bb:cc:dd:ee:ff",
		IPAddress:  "192.168.100.50",
	})
	require.NoError(t, err)

	res, err := env.dhcp.Lookup(d.MACAddress)
	require.NoError(t, err)
	assert.Equal(t, "dhcp-host=aa:bb:cc:dd:ee:ff,192.168.100.50,24h", res)

	ip := "192.168.100.51"
	_, err = env.deviceSvc.Update(d.ID, UpdateDeviceInput{IPAddress: &ip})
	require.NoError(t, err)
	res, err = env.dhcp.Lookup(d.MACAddress)
	require.NoError(t, err)
	assert.Equal(t, "dhcp-host=aa:bb:cc:dd:ee:ff,192.168.100.51,24h", res)

	require.NoError(t, env.deviceSvc.Delete(d.ID))
	res, err = env.dhcp.Lookup(d.MACAddress)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRegisterWithoutAddressSkipsReservation(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	res, err := env.dhcp.Lookup(d.MACAddress)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestListStale(t *testing.T) {
	env := newTestEnv(t)
	fresh := env.registerDevice(t, "aa:bb:cc:dd:ee:01")
	stale := env.registerDevice(t, "aa:bb:cc:dd:ee:02")

	require.NoError(t, env.deviceSvc.RecordContact(fresh.ID, nil))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Device{}).Where("id = ?", stale.ID).
		Updates(map[string]any{"last_contact": old, "status": models.DeviceOnline}).Error)

	got, err := env.deviceSvc.ListStale(10 * time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}
