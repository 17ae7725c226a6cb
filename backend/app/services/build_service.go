package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/builder"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// BuildService runs the image build pipeline: synchronous acceptance, then
// asynchronous execution through the configured Executor.
type BuildService struct {
	jobs     *repo.BuildJobRepository
	images   *repo.ImageRepository
	executor builder.Executor
	log      zerolog.Logger

	cancels cancelRegistry
}

func NewBuildService(jobs *repo.BuildJobRepository, images *repo.ImageRepository, executor builder.Executor, log zerolog.Logger) *BuildService {
	return &BuildService{jobs: jobs, images: images, executor: executor, log: log}
}

// Submit validates the spec, records image+job as building and schedules
// execution. Returns immediately; progress is observable via GetJob. A job
// id is never reused and identical specs produce distinct jobs.
func (s *BuildService) Submit(spec builder.Spec) (*models.BuildJob, error) {
	if spec.Name == "" || spec.Version == "" {
		return nil, apperr.InvalidInput("image spec requires name and version")
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, apperr.InvalidInput("unencodable spec: %v", err)
	}

	img := &models.Image{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Version:     spec.Version,
		Description: spec.Description,
		Status:      models.ImageBuilding,
	}
	job := &models.BuildJob{
		ID:        uuid.NewString(),
		ImageID:   img.ID,
		Spec:      string(specJSON),
		Status:    models.BuildRunning,
		StartedAt: time.Now(),
	}
	if err := s.jobs.CreateWithImage(job, img); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels.put(job.ID, cancel)
	go s.run(ctx, job.ID, img.ID, spec)

	return job, nil
}

func (s *BuildService) run(ctx context.Context, jobID, imageID string, spec builder.Spec) {
	defer s.cancels.drop(jobID)
	log := s.log.With().Str("job", jobID).Str("image", imageID).Logger()

	artifact, err := s.executor.Execute(ctx, jobID, spec, func(stage string, pct int) bool {
		ok, perr := s.jobs.AdvanceProgress(jobID, stage, pct)
		if perr != nil {
			log.Error().Err(perr).Msg("persist build progress")
			return false
		}
		return ok
	})

	switch {
	case errors.Is(err, builder.ErrCancelled):
		// Cancel already flipped the job; only the image needs sealing.
		if ierr := s.images.Fail(imageID); ierr != nil {
			log.Error().Err(ierr).Msg("mark image failed after cancel")
		}
		log.Info().Msg("build cancelled")
	case err != nil:
		// Asynchronous failure is captured into terminal state, never
		// propagated: no caller is waiting.
		if _, ferr := s.jobs.Finish(jobID, models.BuildFailed, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("mark job failed")
		}
		if ierr := s.images.Fail(imageID); ierr != nil {
			log.Error().Err(ierr).Msg("mark image failed")
		}
		log.Error().Err(err).Msg("build failed")
	default:
		moved, ferr := s.jobs.Finish(jobID, models.BuildCompleted, "")
		if ferr != nil {
			log.Error().Err(ferr).Msg("mark job completed")
			return
		}
		if !moved {
			// Cancelled between the last progress step and completion; the
			// artifact is unusable.
			if ierr := s.images.Fail(imageID); ierr != nil {
				log.Error().Err(ierr).Msg("mark image failed after late cancel")
			}
			return
		}
		if ierr := s.images.Complete(imageID, artifact.Path, artifact.SizeBytes, artifact.Checksum); ierr != nil {
			log.Error().Err(ierr).Msg("seal image")
			return
		}
		log.Info().Str("checksum", artifact.Checksum).Int64("size", artifact.SizeBytes).Msg("build completed")
	}
}

func (s *BuildService) GetJob(id string) (*models.BuildJob, error) {
	job, err := s.jobs.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("build job %s", id)
	}
	return job, err
}

func (s *BuildService) ListJobs(status string) ([]models.BuildJob, error) {
	return s.jobs.List(status)
}

// Cancel is cooperative: the status flip here is what the executor's next
// progress persist observes, and the context wakes any in-flight stage
// delay.
func (s *BuildService) Cancel(jobID, reason string) error {
	if _, err := s.GetJob(jobID); err != nil {
		return err
	}
	moved, err := s.jobs.Finish(jobID, models.BuildCancelled, reason)
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("build job %s is not running", jobID)
	}
	s.cancels.cancel(jobID)
	return nil
}

func (s *BuildService) GetImage(id string) (*models.Image, error) {
	img, err := s.images.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("image %s", id)
	}
	return img, err
}

func (s *BuildService) ListImages(status string) ([]models.Image, error) {
	return s.images.List(status)
}

// DeleteImage refuses while any deployment or device still references the
// image, current or historical.
func (s *BuildService) DeleteImage(id string) error {
	if _, err := s.GetImage(id); err != nil {
		return err
	}
	n, err := s.images.ReferenceCount(id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("image %s is referenced by %d deployments or devices", id, n)
	}
	return s.images.Delete(id)
}
