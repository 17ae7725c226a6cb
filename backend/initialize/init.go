package initialize

import (
	"fmt"
	"net/http"

	"vdi-fleet/backend/app/builder"
	"vdi-fleet/backend/app/controllers"
	"vdi-fleet/backend/app/db"
	jwtutil "vdi-fleet/backend/app/jwt"
	"vdi-fleet/backend/app/middleware"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/presence"
	"vdi-fleet/backend/app/pxe"
	"vdi-fleet/backend/app/repo"
	"vdi-fleet/backend/app/services"
	"vdi-fleet/backend/config"
	"vdi-fleet/backend/global"
	"vdi-fleet/backend/router"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Cfg        *config.Config
	DB         *gorm.DB
	Router     http.Handler
	Devices    *services.DeviceService
	Builds     *services.BuildService
	Deploys    *services.DeploymentService
	Heartbeats *services.HeartbeatService
	Sweeper    *services.LivenessSweeper
	Users      *services.UserService
}

func Build(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	global.Config = cfg

	gdb, err := db.Connect(db.Config{
		Driver: cfg.DB.Driver,
		Host:   cfg.DB.Host, Port: cfg.DB.Port,
		User: cfg.DB.User, Password: cfg.DB.Pass,
		DBName: cfg.DB.Name, Path: cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	global.Mdb = gdb

	if err := gdb.AutoMigrate(
		&models.User{}, &models.Device{}, &models.Image{}, &models.BuildJob{},
		&models.Deployment{}, &models.DeploymentTarget{}, &models.DeviceReservation{},
		&models.Command{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if cfg.Redis.Enabled {
		global.Rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	}

	// Repositories
	userRepo := repo.NewUserRepository(gdb)
	deviceRepo := repo.NewDeviceRepository(gdb)
	imageRepo := repo.NewImageRepository(gdb)
	jobRepo := repo.NewBuildJobRepository(gdb)
	deployRepo := repo.NewDeploymentRepository(gdb)
	cmdRepo := repo.NewCommandRepository(gdb)

	// Domain services
	boot := pxe.NewGenerator(cfg.Boot.TFTPRoot)
	dhcp := pxe.NewReservations(cfg.Boot.DHCPConf)
	tracker := presence.NewTracker(global.Rdb, cfg.Liveness.Window)

	userSvc := services.NewUserService(userRepo)
	deviceSvc := services.NewDeviceService(deviceRepo, deployRepo, cmdRepo, boot, dhcp, tracker)
	buildSvc := services.NewBuildService(jobRepo, imageRepo, builder.NewLocal(cfg.Boot.ArtifactDir), global.Logger)
	deploySvc := services.NewDeploymentService(deployRepo, deviceRepo, imageRepo, cmdRepo, boot, cfg.Boot.ArtifactBaseURL, global.Logger)
	heartbeatSvc := services.NewHeartbeatService(deviceRepo, cmdRepo, deploySvc, tracker, cfg.Liveness.Window, global.Logger)
	sweeper := services.NewLivenessSweeper(deviceRepo, cfg.Liveness.Window, cfg.Liveness.SweepInterval, global.Logger)

	if err := userSvc.EnsureAdmin("admin", "admin123"); err != nil {
		global.Logger.Warn().Err(err).Msg("ensure admin user")
	}

	// Controllers
	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	mw := &middleware.Auth{Signer: signer}
	h := router.NewRouter(
		controllers.NewHTTPController(),
		controllers.NewAuthController(userSvc, signer),
		controllers.NewDeviceController(deviceSvc),
		controllers.NewImageController(buildSvc),
		controllers.NewDeploymentController(deploySvc),
		controllers.NewHeartbeatController(heartbeatSvc),
		controllers.NewCommandController(heartbeatSvc),
		mw,
		cfg.Boot.ArtifactDir,
	)
	h = middleware.Logging(h)

	return &App{
		Cfg: cfg, DB: gdb, Router: h,
		Devices: deviceSvc, Builds: buildSvc, Deploys: deploySvc,
		Heartbeats: heartbeatSvc, Sweeper: sweeper, Users: userSvc,
	}, nil
}
