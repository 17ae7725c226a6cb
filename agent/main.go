package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vdi-fleet/agent/internal/client"
	"vdi-fleet/agent/internal/command"
	"vdi-fleet/agent/internal/config"
	"vdi-fleet/agent/internal/logger"
	"vdi-fleet/agent/internal/sysinfo"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "path to agent config file")
	flag.Parse()

	cfg := config.Init(*configPath)
	if err := logger.Init(cfg.LogPath); err != nil {
		panic(err)
	}

	mac, err := sysinfo.PrimaryMAC()
	if err != nil {
		logger.Errorf("detect primary mac: %v", err)
		os.Exit(1)
	}
	deviceID := sysinfo.DeviceID(mac)
	logger.Infof("agent starting, device %s (mac %s), server %s", deviceID, mac, cfg.ServerURL)

	c := client.New(cfg.ServerURL, cfg.DeviceToken, deviceID)
	command.Register(command.NewUpdateImageHandler(c))
	dispatcher := command.NewDispatcher(c)

	stopWatch, err := config.Watch(func(fresh config.AppConfig) {
		logger.Infof("config reloaded, heartbeat interval %s", fresh.HeartbeatInterval)
		c.BaseURL = fresh.ServerURL
		c.Token = fresh.DeviceToken
	})
	if err != nil {
		logger.Errorf("config watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	beat(ctx, c, dispatcher)
	for {
		timer := time.NewTimer(config.Get().HeartbeatInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("agent shutting down")
			return
		case <-timer.C:
			beat(ctx, c, dispatcher)
		}
	}
}

func beat(ctx context.Context, c *client.Client, d *command.Dispatcher) {
	profile, err := sysinfo.Collect()
	if err != nil {
		logger.Warnf("collect hardware profile: %v", err)
	}
	cmds, err := c.Heartbeat(ctx, profile)
	if err != nil {
		logger.Errorf("heartbeat: %v", err)
		return
	}
	if len(cmds) > 0 {
		logger.Infof("received %d command(s)", len(cmds))
		d.Run(ctx, cmds)
	}
}
