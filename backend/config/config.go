package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host string
	Port int
}

type DB struct {
	Driver string
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
	Path   string // sqlite
}

type Redis struct {
	Enabled bool
	Addr    string
	DB      int
}

type Boot struct {
	TFTPRoot        string
	ArtifactDir     string
	ArtifactBaseURL string
	DHCPConf        string
}

type Liveness struct {
	Window        time.Duration
	SweepInterval time.Duration
}

type Config struct {
	HTTP     HTTP
	DB       DB
	Redis    Redis
	Boot     Boot
	Liveness Liveness
	JWT      struct {
		Secret string
		Issuer string
		ExpMin int
	}
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("backend.host", "127.0.0.1")
	v.SetDefault("backend.port", 9400)
	v.SetDefault("backend.db.driver", "mysql")
	v.SetDefault("backend.db.host", "127.0.0.1")
	v.SetDefault("backend.db.port", 3306)
	v.SetDefault("backend.db.user", "root")
	v.SetDefault("backend.db.pass", "")
	v.SetDefault("backend.db.name", "vdi_fleet")
	v.SetDefault("backend.db.path", "vdi-fleet.db")
	v.SetDefault("backend.redis.enabled", false)
	v.SetDefault("backend.redis.addr", "127.0.0.1:6379")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.boot.tftp_root", "/var/lib/tftpboot")
	v.SetDefault("backend.boot.artifact_dir", "/var/www/html/images")
	v.SetDefault("backend.boot.artifact_base_url", "http://192.168.100.1/images")
	v.SetDefault("backend.boot.dhcp_conf", "/etc/dnsmasq.d/vdi-devices.conf")
	v.SetDefault("backend.liveness.window", "5m")
	v.SetDefault("backend.liveness.sweep_interval", "1m")

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing file runs on defaults.
	}

	cfg := &Config{
		HTTP: HTTP{Host: v.GetString("backend.host"), Port: v.GetInt("backend.port")},
		DB: DB{
			Driver: v.GetString("backend.db.driver"),
			Host:   v.GetString("backend.db.host"),
			Port:   v.GetInt("backend.db.port"),
			User:   v.GetString("backend.db.user"),
			Pass:   v.GetString("backend.db.pass"),
			Name:   v.GetString("backend.db.name"),
			Path:   v.GetString("backend.db.path"),
		},
		Redis: Redis{
			Enabled: v.GetBool("backend.redis.enabled"),
			Addr:    v.GetString("backend.redis.addr"),
			DB:      v.GetInt("backend.redis.db"),
		},
		Boot: Boot{
			TFTPRoot:        v.GetString("backend.boot.tftp_root"),
			ArtifactDir:     v.GetString("backend.boot.artifact_dir"),
			ArtifactBaseURL: v.GetString("backend.boot.artifact_base_url"),
			DHCPConf:        v.GetString("backend.boot.dhcp_conf"),
		},
		Liveness: Liveness{
			Window:        v.GetDuration("backend.liveness.window"),
			SweepInterval: v.GetDuration("backend.liveness.sweep_interval"),
		},
	}

	cfg.JWT.Secret = v.GetString("backend.jwt.secret")
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	cfg.JWT.Issuer = v.GetString("backend.jwt.issuer")
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "vdi-fleet"
	}
	cfg.JWT.ExpMin = v.GetInt("backend.jwt.exp_min")
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	return cfg, nil
}
