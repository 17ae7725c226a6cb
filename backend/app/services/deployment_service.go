package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/pxe"
	"vdi-fleet/backend/app/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DeploymentService fans a completed image out to a device set and tracks
// per-device outcomes until the deployment reaches a terminal state.
type DeploymentService struct {
	deployments *repo.DeploymentRepository
	devices     *repo.DeviceRepository
	images      *repo.ImageRepository
	commands    *repo.CommandRepository
	boot        *pxe.Generator
	// ArtifactBaseURL is where the static file transport serves completed
	// images, e.g. http://192.168.100.1/images.
	artifactBaseURL string
	log             zerolog.Logger

	// One outcome writer at a time per deployment.
	locks sync.Map // deployment id -> *sync.Mutex
}

func NewDeploymentService(deployments *repo.DeploymentRepository, devices *repo.DeviceRepository, images *repo.ImageRepository, commands *repo.CommandRepository, boot *pxe.Generator, artifactBaseURL string, log zerolog.Logger) *DeploymentService {
	return &DeploymentService{
		deployments:     deployments,
		devices:         devices,
		images:          images,
		commands:        commands,
		boot:            boot,
		artifactBaseURL: artifactBaseURL,
		log:             log,
	}
}

type DeployOptions struct {
	// FailureTolerance is the number of failed devices tolerated before the
	// deployment as a whole fails. Zero: any failure fails the deployment.
	FailureTolerance int
}

// Deploy validates image and device set, then atomically reserves every
// device. The losing side of two overlapping Deploy calls gets Conflict
// from the reservation insert, never a partial acceptance.
func (s *DeploymentService) Deploy(imageID string, deviceIDs []string, method string, opts DeployOptions, actor string) (*models.Deployment, error) {
	switch method {
	case models.MethodBoot, models.MethodMedia, models.MethodPush:
	default:
		return nil, apperr.InvalidInput("unknown delivery method %q", method)
	}
	if len(deviceIDs) == 0 {
		return nil, apperr.InvalidInput("deployment requires at least one device")
	}
	seen := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		if seen[id] {
			return nil, apperr.InvalidInput("duplicate device id %s", id)
		}
		seen[id] = true
	}

	img, err := s.images.FindByID(imageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("image %s", imageID)
	}
	if err != nil {
		return nil, err
	}
	if img.Status != models.ImageCompleted {
		return nil, apperr.Conflict("image %s is %s, not completed", imageID, img.Status)
	}

	known, err := s.devices.FindByIDs(deviceIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range deviceIDs {
		if _, ok := known[id]; !ok {
			return nil, apperr.NotFound("device %s", id)
		}
	}

	dep := &models.Deployment{
		ID:               uuid.NewString(),
		ImageID:          imageID,
		Method:           method,
		Status:           models.DeployPending,
		FailureTolerance: opts.FailureTolerance,
		Actor:            actor,
	}
	targets := make([]models.DeploymentTarget, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		d := known[id]
		targets = append(targets, models.DeploymentTarget{
			DeviceID:     id,
			Status:       models.DeployPending,
			PriorImageID: d.CurrentImageID,
		})
	}
	if err := s.deployments.CreateWithReservations(dep, targets); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("a targeted device already has an active deployment")
		}
		return nil, err
	}
	dep.Targets = targets

	go s.start(dep.ID)
	return dep, nil
}

// start transitions pending→in_progress and performs the per-method
// delivery kickoff. boot: emit a directive per device. push: enqueue an
// update_image command the agent acts on. media: nothing to do here, the
// external mechanism reports outcomes through the callback.
func (s *DeploymentService) start(depID string) {
	log := s.log.With().Str("deployment", depID).Logger()
	moved, err := s.deployments.MarkInProgress(depID)
	if err != nil {
		log.Error().Err(err).Msg("mark deployment in progress")
		return
	}
	if !moved {
		return // cancelled while pending
	}
	dep, err := s.deployments.FindByID(depID)
	if err != nil {
		log.Error().Err(err).Msg("reload deployment")
		return
	}
	img, err := s.images.FindByID(dep.ImageID)
	if err != nil {
		log.Error().Err(err).Msg("load deployment image")
		return
	}

	for _, t := range dep.Targets {
		if err := s.deployments.MarkTargetInProgress(depID, t.DeviceID); err != nil {
			log.Error().Err(err).Str("device", t.DeviceID).Msg("mark target in progress")
			continue
		}
		if err := s.kickoff(dep, img, t.DeviceID); err != nil {
			log.Error().Err(err).Str("device", t.DeviceID).Msg("delivery kickoff")
			if rerr := s.ReportOutcome(depID, t.DeviceID, models.DeployFailed, 0, err.Error()); rerr != nil {
				log.Error().Err(rerr).Str("device", t.DeviceID).Msg("record kickoff failure")
			}
		}
	}
	log.Info().Str("method", dep.Method).Int("devices", len(dep.Targets)).Msg("deployment started")
}

func (s *DeploymentService) kickoff(dep *models.Deployment, img *models.Image, deviceID string) error {
	device, err := s.devices.FindByID(deviceID)
	if err != nil {
		return err
	}
	switch dep.Method {
	case models.MethodBoot:
		return s.boot.Assign(device.MACAddress, dep.ID, s.ArtifactURL(img))
	case models.MethodPush:
		payload, err := json.Marshal(map[string]string{
			"image_url":     s.ArtifactURL(img),
			"image_hash":    img.Checksum,
			"deployment_id": dep.ID,
		})
		if err != nil {
			return err
		}
		return s.commands.Create(&models.Command{
			ID:       uuid.NewString(),
			DeviceID: deviceID,
			Type:     "update_image",
			Payload:  string(payload),
			Status:   models.CommandPending,
			Actor:    dep.Actor,
		})
	default: // media: prepared out of band
		return nil
	}
}

// ArtifactURL is the stable fetch location the boot directive and the agent
// both use.
func (s *DeploymentService) ArtifactURL(img *models.Image) string {
	return fmt.Sprintf("%s/%s", s.artifactBaseURL, url.PathEscape(filepath.Base(img.FilePath)))
}

// ReportOutcome is the delivery-side callback: per-device progress and
// terminal results flow in here from booted deploy environments, agents and
// external media delivery alike. Aggregate progress stays monotonic and the
// deployment goes terminal exactly once all targets have.
func (s *DeploymentService) ReportOutcome(depID, deviceID, status string, progress int, errMsg string) error {
	mu := s.lock(depID)
	mu.Lock()
	defer mu.Unlock()

	dep, err := s.deployments.FindByID(depID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("deployment %s", depID)
	}
	if err != nil {
		return err
	}
	if models.DeploymentTerminal(dep.Status) {
		return apperr.Conflict("deployment %s is already %s", depID, dep.Status)
	}
	if _, err := s.deployments.Target(depID, deviceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("device %s is not a target of deployment %s", deviceID, depID)
		}
		return err
	}

	switch status {
	case models.DeployInProgress:
		if progress < 0 || progress > 100 {
			return apperr.InvalidInput("progress %d out of range", progress)
		}
		if _, err := s.deployments.AdvanceTargetProgress(depID, deviceID, progress); err != nil {
			return err
		}
	case models.DeployCompleted:
		moved, err := s.deployments.FinishTarget(depID, deviceID, models.DeployCompleted, "")
		if err != nil {
			return err
		}
		if moved {
			if err := s.devices.ShiftImage(deviceID, dep.ImageID); err != nil {
				return err
			}
			s.retractFor(dep, deviceID)
		}
	case models.DeployFailed:
		moved, err := s.deployments.FinishTarget(depID, deviceID, models.DeployFailed, errMsg)
		if err != nil {
			return err
		}
		if moved {
			if err := s.devices.MarkError(deviceID); err != nil {
				return err
			}
			s.retractFor(dep, deviceID)
		}
	default:
		return apperr.InvalidInput("unknown outcome status %q", status)
	}

	return s.evaluate(dep)
}

// evaluate recomputes the aggregate and settles the deployment when every
// target is terminal.
func (s *DeploymentService) evaluate(dep *models.Deployment) error {
	targets, err := s.deployments.Targets(dep.ID)
	if err != nil {
		return err
	}
	var sum, terminal, failed int
	for _, t := range targets {
		sum += t.Progress
		if models.DeploymentTerminal(t.Status) {
			terminal++
		}
		if t.Status == models.DeployFailed {
			failed++
		}
	}
	if len(targets) > 0 {
		if err := s.deployments.AdvanceProgress(dep.ID, sum/len(targets)); err != nil {
			return err
		}
	}
	if terminal < len(targets) {
		return nil
	}

	status := models.DeployCompleted
	msg := ""
	if failed > dep.FailureTolerance {
		status = models.DeployFailed
		msg = fmt.Sprintf("%d of %d devices failed", failed, len(targets))
	}
	moved, err := s.deployments.Finish(dep.ID, status, msg)
	if err != nil {
		return err
	}
	if moved {
		s.log.Info().Str("deployment", dep.ID).Str("status", status).Int("failed", failed).Msg("deployment settled")
	}
	return nil
}

// Cancel flips a live deployment to cancelled, cancels its open targets,
// retracts boot directives and releases the device reservations.
func (s *DeploymentService) Cancel(depID string) error {
	mu := s.lock(depID)
	mu.Lock()
	defer mu.Unlock()

	dep, err := s.deployments.FindByID(depID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("deployment %s", depID)
	}
	if err != nil {
		return err
	}
	moved, err := s.deployments.Finish(depID, models.DeployCancelled, "cancelled by operator")
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("deployment %s is already terminal", depID)
	}
	for _, t := range dep.Targets {
		if !models.DeploymentTerminal(t.Status) {
			if _, err := s.deployments.FinishTarget(depID, t.DeviceID, models.DeployCancelled, ""); err != nil {
				return err
			}
		}
		s.retractFor(dep, t.DeviceID)
	}
	return nil
}

// Rollback creates fresh deployments returning each device to its image
// from before the given deployment. Devices that had no image then cannot
// be rolled back. Targets are grouped by prior image: one new deployment
// per distinct image.
func (s *DeploymentService) Rollback(depID, actor string) ([]*models.Deployment, error) {
	dep, err := s.Get(depID)
	if err != nil {
		return nil, err
	}
	if dep.Status != models.DeployCompleted {
		return nil, apperr.Conflict("only completed deployments can be rolled back, %s is %s", depID, dep.Status)
	}
	byImage := make(map[string][]string)
	for _, t := range dep.Targets {
		if t.PriorImageID == "" {
			return nil, apperr.Conflict("device %s has no prior image to roll back to", t.DeviceID)
		}
		byImage[t.PriorImageID] = append(byImage[t.PriorImageID], t.DeviceID)
	}
	var created []*models.Deployment
	for imageID, devices := range byImage {
		nd, err := s.Deploy(imageID, devices, dep.Method, DeployOptions{FailureTolerance: dep.FailureTolerance}, actor)
		if err != nil {
			return created, err
		}
		created = append(created, nd)
	}
	return created, nil
}

func (s *DeploymentService) Get(id string) (*models.Deployment, error) {
	dep, err := s.deployments.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("deployment %s", id)
	}
	return dep, err
}

func (s *DeploymentService) List(status, deviceID string) ([]models.Deployment, error) {
	return s.deployments.List(status, deviceID)
}

func (s *DeploymentService) retractFor(dep *models.Deployment, deviceID string) {
	if dep.Method != models.MethodBoot || s.boot == nil {
		return
	}
	device, err := s.devices.FindByID(deviceID)
	if err != nil {
		return
	}
	if err := s.boot.Retract(device.MACAddress); err != nil {
		s.log.Error().Err(err).Str("device", deviceID).Msg("retract boot directive")
	}
}

func (s *DeploymentService) lock(depID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(depID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
