package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatDrainsQueueExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	ctx := context.Background()

	first, err := env.beatSvc.Enqueue(d.ID, "ping", nil, "op")
	require.NoError(t, err)
	second, err := env.beatSvc.Enqueue(d.ID, "collect_info", nil, "op")
	require.NoError(t, err)

	cmds, err := env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, first.ID, cmds[0].ID, "delivery is FIFO")
	assert.Equal(t, second.ID, cmds[1].ID)
	assert.Equal(t, models.CommandSent, cmds[0].Status)

	// a second heartbeat must not redeliver
	cmds, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cmds)

	dev, err := env.deviceSvc.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceOnline, dev.Status)
	assert.NotNil(t, dev.LastContact)
}

func TestHeartbeatStoresHardwareProfile(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	profile := json.RawMessage(`{"hostname":"tc-01","cpu_cores":4}`)
	_, err := env.beatSvc.Heartbeat(context.Background(), d.ID, profile)
	require.NoError(t, err)

	dev, err := env.deviceSvc.Get(d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(profile), dev.HardwareProfile)
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.beatSvc.Heartbeat(context.Background(), "ghost", nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestEnqueueValidates(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	_, err := env.beatSvc.Enqueue(d.ID, "", nil, "op")
	assert.True(t, apperr.IsInvalidInput(err))

	_, err = env.beatSvc.Enqueue("ghost", "ping", nil, "op")
	assert.True(t, apperr.IsNotFound(err))
}

func TestReportResult(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:01")
	other := env.registerDevice(t, "aa:bb:cc:dd:ee:02")
	ctx := context.Background()

	cmd, err := env.beatSvc.Enqueue(d.ID, "ping", nil, "op")
	require.NoError(t, err)
	_, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)

	// a result from the wrong device is rejected
	err = env.beatSvc.ReportResult(other.ID, cmd.ID, true, nil)
	assert.True(t, apperr.IsConflict(err))

	require.NoError(t, env.beatSvc.ReportResult(d.ID, cmd.ID, true, json.RawMessage(`{"pong":true}`)))

	got, err := env.beatSvc.ListCommands(d.ID, models.CommandCompleted)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cmd.ID, got[0].ID)
	assert.JSONEq(t, `{"pong":true}`, got[0].Result)

	// results are settled once
	err = env.beatSvc.ReportResult(d.ID, cmd.ID, false, nil)
	assert.True(t, apperr.IsConflict(err))
}

func TestResendReturnsSentCommandToQueue(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	ctx := context.Background()

	cmd, err := env.beatSvc.Enqueue(d.ID, "ping", nil, "op")
	require.NoError(t, err)

	// pending commands cannot be resent
	err = env.beatSvc.Resend(cmd.ID)
	assert.True(t, apperr.IsConflict(err))

	_, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)

	require.NoError(t, env.beatSvc.Resend(cmd.ID))
	cmds, err := env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, cmd.ID, cmds[0].ID)
}

func TestPushDeploymentSettledByCommandResult(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	img := env.completedImage(t, "base", "1.0")
	ctx := context.Background()

	dep, err := env.deploySvc.Deploy(img.ID, []string{d.ID}, models.MethodPush, DeployOptions{}, "op")
	require.NoError(t, err)

	// the kickoff enqueues an update_image command for the agent
	var cmds []models.Command
	waitFor(t, func() bool {
		cmds, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
		return err == nil && len(cmds) == 1
	}, "update_image command to be delivered")
	assert.Equal(t, "update_image", cmds[0].Type)

	var payload struct {
		ImageURL     string `json:"image_url"`
		ImageHash    string `json:"image_hash"`
		DeploymentID string `json:"deployment_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(cmds[0].Payload), &payload))
	assert.Equal(t, dep.ID, payload.DeploymentID)
	assert.Equal(t, img.Checksum, payload.ImageHash)
	assert.Contains(t, payload.ImageURL, "base-1.0.img")

	require.NoError(t, env.beatSvc.ReportResult(d.ID, cmds[0].ID, true, json.RawMessage(`{"staged_path":"/tmp/base-1.0.img"}`)))

	got, err := env.deploySvc.Get(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeployCompleted, got.Status)

	dev, err := env.deviceSvc.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, img.ID, dev.CurrentImageID)
}

func TestPushDeploymentFailureForwarded(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	img := env.completedImage(t, "base", "1.0")
	ctx := context.Background()

	dep, err := env.deploySvc.Deploy(img.ID, []string{d.ID}, models.MethodPush, DeployOptions{}, "op")
	require.NoError(t, err)

	var cmds []models.Command
	waitFor(t, func() bool {
		cmds, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
		return err == nil && len(cmds) == 1
	}, "update_image command to be delivered")

	require.NoError(t, env.beatSvc.ReportResult(d.ID, cmds[0].ID, false, json.RawMessage(`{"error":"checksum mismatch"}`)))

	got, err := env.deploySvc.Get(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeployFailed, got.Status)
	require.Len(t, got.Targets, 1)
	assert.Equal(t, "checksum mismatch", got.Targets[0].Error)
}

func TestOnlineFallsBackToLastContact(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")
	ctx := context.Background()

	online, err := env.beatSvc.Online(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, online, "no contact yet")

	_, err = env.beatSvc.Heartbeat(ctx, d.ID, nil)
	require.NoError(t, err)

	online, err = env.beatSvc.Online(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestOnlineDevicesListsRecentlySeenFleet(t *testing.T) {
	env := newTestEnv(t)
	seen := env.registerDevice(t, "aa:bb:cc:dd:ee:01")
	env.registerDevice(t, "aa:bb:cc:dd:ee:02") // never contacted
	stale := env.registerDevice(t, "aa:bb:cc:dd:ee:03")
	ctx := context.Background()

	_, err := env.beatSvc.Heartbeat(ctx, seen.ID, nil)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Device{}).Where("id = ?", stale.ID).
		Update("last_contact", old).Error)

	ids, err := env.beatSvc.OnlineDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{seen.ID}, ids)
}

func TestQueueOrderSurvivesTimestampTies(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t, "aa:bb:cc:dd:ee:ff")

	// identical created_at and descending ids would invert a
	// timestamp-then-id ordering; queue position must hold regardless
	now := time.Now().Truncate(time.Second)
	order := []string{"zz-first", "mm-second", "aa-third"}
	for _, id := range order {
		require.NoError(t, env.commands.Create(&models.Command{
			ID:        id,
			DeviceID:  d.ID,
			Type:      "ping",
			Status:    models.CommandPending,
			CreatedAt: now,
		}))
	}

	cmds, err := env.beatSvc.Heartbeat(context.Background(), d.ID, nil)
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	for i, id := range order {
		assert.Equal(t, id, cmds[i].ID)
	}
}
