package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/presence"
	"vdi-fleet/backend/app/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// HeartbeatService is the device-facing channel: periodic status reports in,
// queued commands out, command results correlated back. Delivery is
// pull-based FIFO per device; the fleet cannot be assumed reachable for
// push.
type HeartbeatService struct {
	devices     *repo.DeviceRepository
	commands    *repo.CommandRepository
	deployments *DeploymentService
	presence    *presence.Tracker
	// livenessWindow bounds how old a last contact may be before a device
	// counts as offline when presence tracking is unavailable.
	livenessWindow time.Duration
	log            zerolog.Logger
}

func NewHeartbeatService(devices *repo.DeviceRepository, commands *repo.CommandRepository, deployments *DeploymentService, tracker *presence.Tracker, livenessWindow time.Duration, log zerolog.Logger) *HeartbeatService {
	if livenessWindow <= 0 {
		livenessWindow = 5 * time.Minute
	}
	return &HeartbeatService{
		devices:        devices,
		commands:       commands,
		deployments:    deployments,
		presence:       tracker,
		livenessWindow: livenessWindow,
		log:            log,
	}
}

// Heartbeat records the contact and atomically drains the device's pending
// command queue, flipping each returned command to sent. This is the only
// path out of pending; a command lost after sending comes back only through
// an operator Resend.
func (s *HeartbeatService) Heartbeat(ctx context.Context, deviceID string, profile json.RawMessage) ([]models.Command, error) {
	n, err := s.devices.RecordContact(deviceID, string(profile), time.Now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("device %s", deviceID)
	}
	if err := s.presence.Mark(ctx, deviceID); err != nil {
		s.log.Warn().Err(err).Str("device", deviceID).Msg("presence mark")
	}
	return s.commands.TakePending(deviceID)
}

// Enqueue appends a command to the device's FIFO queue.
func (s *HeartbeatService) Enqueue(deviceID, cmdType string, payload json.RawMessage, actor string) (*models.Command, error) {
	if cmdType == "" {
		return nil, apperr.InvalidInput("command type required")
	}
	if _, err := s.devices.FindByID(deviceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("device %s", deviceID)
		}
		return nil, err
	}
	cmd := &models.Command{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		Type:     cmdType,
		Payload:  string(payload),
		Status:   models.CommandPending,
		Actor:    actor,
	}
	if err := s.commands.Create(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ReportResult correlates an agent's result with its command. The command
// must belong to the reporting device and still be open. An update_image
// result additionally settles the device's outcome on the deployment it
// carried.
func (s *HeartbeatService) ReportResult(deviceID, commandID string, success bool, result json.RawMessage) error {
	cmd, err := s.commands.FindByID(commandID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("command %s", commandID)
	}
	if err != nil {
		return err
	}
	if cmd.DeviceID != deviceID {
		return apperr.Conflict("command %s does not belong to device %s", commandID, deviceID)
	}
	status := models.CommandCompleted
	if !success {
		status = models.CommandFailed
	}
	moved, err := s.commands.Complete(commandID, status, string(result))
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("command %s is already terminal", commandID)
	}

	if cmd.Type == "update_image" && s.deployments != nil {
		s.settleImageUpdate(cmd, deviceID, success, result)
	}
	return nil
}

// settleImageUpdate forwards a push-delivery result into deployment state.
func (s *HeartbeatService) settleImageUpdate(cmd *models.Command, deviceID string, success bool, result json.RawMessage) {
	var payload struct {
		DeploymentID string `json:"deployment_id"`
	}
	if err := json.Unmarshal([]byte(cmd.Payload), &payload); err != nil || payload.DeploymentID == "" {
		return
	}
	outcome := models.DeployCompleted
	errMsg := ""
	if !success {
		outcome = models.DeployFailed
		var detail struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(result, &detail)
		errMsg = detail.Error
		if errMsg == "" {
			errMsg = "image update failed on device"
		}
	}
	if err := s.deployments.ReportOutcome(payload.DeploymentID, deviceID, outcome, 100, errMsg); err != nil {
		s.log.Warn().Err(err).Str("deployment", payload.DeploymentID).Str("device", deviceID).
			Msg("settle push deployment outcome")
	}
}

// Resend is the operator's explicit redelivery: a sent command goes back to
// pending and the next heartbeat picks it up again.
func (s *HeartbeatService) Resend(commandID string) error {
	if _, err := s.commands.FindByID(commandID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("command %s", commandID)
		}
		return err
	}
	moved, err := s.commands.Requeue(commandID)
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("command %s is not in sent state", commandID)
	}
	return nil
}

func (s *HeartbeatService) ListCommands(deviceID, status string) ([]models.Command, error) {
	return s.commands.List(deviceID, status)
}

// OnlineDevices lists the ids of every device currently considered online,
// from the presence cache when available and otherwise from last-contact
// recency in the store.
func (s *HeartbeatService) OnlineDevices(ctx context.Context) ([]string, error) {
	if s.presence.Enabled() {
		return s.presence.OnlineDevices(ctx)
	}
	return s.devices.ListSeenSince(time.Now().Add(-s.livenessWindow))
}

// Online prefers the presence cache and falls back to the last-contact
// window.
func (s *HeartbeatService) Online(ctx context.Context, deviceID string) (bool, error) {
	if online, ok := s.presence.Online(ctx, deviceID); ok {
		return online, nil
	}
	d, err := s.devices.FindByID(deviceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.NotFound("device %s", deviceID)
	}
	if err != nil {
		return false, err
	}
	return d.LastContact != nil && time.Since(*d.LastContact) < s.livenessWindow, nil
}
