package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/presence"
	"vdi-fleet/backend/app/pxe"
	"vdi-fleet/backend/app/repo"

	"gorm.io/gorm"
)

// DeviceService owns device identity and liveness state.
type DeviceService struct {
	devices     *repo.DeviceRepository
	deployments *repo.DeploymentRepository
	commands    *repo.CommandRepository
	boot        *pxe.Generator
	dhcp        *pxe.Reservations
	presence    *presence.Tracker
}

func NewDeviceService(devices *repo.DeviceRepository, deployments *repo.DeploymentRepository, commands *repo.CommandRepository, boot *pxe.Generator, dhcp *pxe.Reservations, tracker *presence.Tracker) *DeviceService {
	return &DeviceService{devices: devices, deployments: deployments, commands: commands, boot: boot, dhcp: dhcp, presence: tracker}
}

type RegisterDeviceInput struct {
	MACAddress   string
	IPAddress    string
	Hostname     string
	Location     string
	AssignedUser string
}

// Register creates a new device in provisioning state. The hardware address
// is the fleet's identity key: normalized, unique, immutable.
func (s *DeviceService) Register(in RegisterDeviceInput) (*models.Device, error) {
	mac, err := models.NormalizeMAC(in.MACAddress)
	if err != nil {
		return nil, err
	}
	d := &models.Device{
		ID:           models.DeviceIDFromMAC(mac),
		MACAddress:   mac,
		IPAddress:    in.IPAddress,
		Hostname:     in.Hostname,
		Location:     in.Location,
		AssignedUser: in.AssignedUser,
		Status:       models.DeviceProvisioning,
	}
	if err := s.devices.Create(d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("hardware address %s already registered", mac)
		}
		return nil, err
	}
	if s.dhcp != nil {
		if err := s.dhcp.Reserve(mac, d.IPAddress); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *DeviceService) Get(id string) (*models.Device, error) {
	d, err := s.devices.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("device %s", id)
	}
	return d, err
}

func (s *DeviceService) List(f repo.DeviceFilter) ([]models.Device, error) {
	return s.devices.List(f)
}

type UpdateDeviceInput struct {
	IPAddress    *string
	Hostname     *string
	Location     *string
	AssignedUser *string
	Status       *string
}

// Update merges the provided fields. The hardware address is not among
// them: identity never changes after registration.
func (s *DeviceService) Update(id string, in UpdateDeviceInput) (*models.Device, error) {
	fields := map[string]any{}
	if in.IPAddress != nil {
		fields["ip_address"] = *in.IPAddress
	}
	if in.Hostname != nil {
		fields["hostname"] = *in.Hostname
	}
	if in.Location != nil {
		fields["location"] = *in.Location
	}
	if in.AssignedUser != nil {
		fields["assigned_user"] = *in.AssignedUser
	}
	if in.Status != nil {
		switch *in.Status {
		case models.DeviceProvisioning, models.DeviceOnline, models.DeviceOffline, models.DeviceError:
			fields["status"] = *in.Status
		default:
			return nil, apperr.InvalidInput("unknown device status %q", *in.Status)
		}
	}
	if len(fields) == 0 {
		return s.Get(id)
	}
	n, err := s.devices.Updates(id, fields)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("device %s", id)
	}
	d, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if in.IPAddress != nil && s.dhcp != nil {
		if d.IPAddress == "" {
			err = s.dhcp.Release(d.MACAddress)
		} else {
			err = s.dhcp.Reserve(d.MACAddress, d.IPAddress)
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Delete refuses while a non-terminal deployment holds the device. Pending
// commands and any boot directive are removed along with the device.
func (s *DeviceService) Delete(id string) error {
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	if res, err := s.deployments.ReservationForDevice(id); err == nil {
		return apperr.Conflict("device %s has active deployment %s", id, res.DeploymentID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err := s.commands.DeleteByDevice(id); err != nil {
		return err
	}
	if s.boot != nil {
		if err := s.boot.Retract(d.MACAddress); err != nil {
			return err
		}
	}
	if s.dhcp != nil {
		if err := s.dhcp.Release(d.MACAddress); err != nil {
			return err
		}
	}
	if err := s.presence.Clear(context.Background(), id); err != nil {
		return err
	}
	return s.devices.Delete(id)
}

// RecordContact is the heartbeat upsert: status online, last contact now,
// reported profile stored. Last writer wins between racing heartbeats.
func (s *DeviceService) RecordContact(id string, profile json.RawMessage) error {
	n, err := s.devices.RecordContact(id, string(profile), time.Now())
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("device %s", id)
	}
	return nil
}

// ListStale answers the liveness contract: devices unseen since the window.
func (s *DeviceService) ListStale(olderThan time.Duration) ([]models.Device, error) {
	return s.devices.ListStale(time.Now().Add(-olderThan))
}

// MarkError flags a device whose deployment ended in terminal failure. The
// failure detail lives on the deployment target.
func (s *DeviceService) MarkError(id string) error {
	return s.devices.MarkError(id)
}
