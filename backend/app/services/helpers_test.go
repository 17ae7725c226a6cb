package services

import (
	"path/filepath"
	"testing"
	"time"

	"vdi-fleet/backend/app/builder"
	"vdi-fleet/backend/app/db"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/presence"
	"vdi-fleet/backend/app/pxe"
	"vdi-fleet/backend/app/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db          *gorm.DB
	devices     *repo.DeviceRepository
	images      *repo.ImageRepository
	jobs        *repo.BuildJobRepository
	deployments *repo.DeploymentRepository
	commands    *repo.CommandRepository
	boot        *pxe.Generator
	dhcp        *pxe.Reservations

	deviceSvc *DeviceService
	buildSvc  *BuildService
	deploySvc *DeploymentService
	beatSvc   *HeartbeatService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.Connect(db.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "fleet.db")})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.Device{}, &models.Image{}, &models.BuildJob{},
		&models.Deployment{}, &models.DeploymentTarget{}, &models.DeviceReservation{},
		&models.Command{},
	))

	env := &testEnv{
		db:          gdb,
		devices:     repo.NewDeviceRepository(gdb),
		images:      repo.NewImageRepository(gdb),
		jobs:        repo.NewBuildJobRepository(gdb),
		deployments: repo.NewDeploymentRepository(gdb),
		commands:    repo.NewCommandRepository(gdb),
		boot:        pxe.NewGenerator(t.TempDir()),
		dhcp:        pxe.NewReservations(filepath.Join(t.TempDir(), "vdi-devices.conf")),
	}

	log := zerolog.Nop()
	env.deviceSvc = NewDeviceService(env.devices, env.deployments, env.commands, env.boot, env.dhcp, presence.NewTracker(nil, time.Minute))
	env.buildSvc = NewBuildService(env.jobs, env.images, builder.NewLocal(t.TempDir()), log)
	env.deploySvc = NewDeploymentService(env.deployments, env.devices, env.images, env.commands, env.boot, "http://fleet/images", log)
	env.beatSvc = NewHeartbeatService(env.devices, env.commands, env.deploySvc, presence.NewTracker(nil, time.Minute), time.Minute, log)
	return env
}

func (e *testEnv) registerDevice(t *testing.T, mac string) *models.Device {
	t.Helper()
	d, err := e.deviceSvc.Register(RegisterDeviceInput{MACAddress: mac})
	require.NoError(t, err)
	return d
}

func (e *testEnv) completedImage(t *testing.T, name, version string) *models.Image {
	t.Helper()
	img := &models.Image{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   version,
		FilePath:  "/var/lib/vdi/images/" + name + "-" + version + ".img",
		SizeBytes: 1024,
		Checksum:  "deadbeef",
		Status:    models.ImageCompleted,
	}
	require.NoError(t, e.images.Create(nil, img))
	return img
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
