package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerURL            string
	DeviceToken          string
	HeartbeatInterval    time.Duration
	EnableRemoteCommands bool
	CommandTimeout       time.Duration
	LogPath              string
	StageDir             string // downloaded images staged here pending reboot
}

var (
	mu   sync.RWMutex
	cfg  AppConfig
	path string
)

func Init(configPath string) AppConfig {
	path = configPath
	v := newViper()
	_ = v.ReadInConfig()
	mu.Lock()
	cfg = fromViper(v)
	mu.Unlock()
	return Get()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("agent.server_url", "http://127.0.0.1:9400")
	v.SetDefault("agent.heartbeat_interval", "60s")
	v.SetDefault("agent.enable_remote_commands", true)
	v.SetDefault("agent.command_timeout", "300s")
	v.SetDefault("agent.log_path", "")
	v.SetDefault("agent.stage_dir", filepath.Join(os.TempDir(), "vdi-agent"))
	return v
}

func fromViper(v *viper.Viper) AppConfig {
	return AppConfig{
		ServerURL:            v.GetString("agent.server_url"),
		DeviceToken:          v.GetString("agent.device_token"),
		HeartbeatInterval:    v.GetDuration("agent.heartbeat_interval"),
		EnableRemoteCommands: v.GetBool("agent.enable_remote_commands"),
		CommandTimeout:       v.GetDuration("agent.command_timeout"),
		LogPath:              v.GetString("agent.log_path"),
		StageDir:             v.GetString("agent.stage_dir"),
	}
}

func Get() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch reloads the config whenever the file changes and invokes onChange
// with the fresh values. Returns a stop func.
func Watch(onChange func(AppConfig)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				v := newViper()
				if err := v.ReadInConfig(); err != nil {
					continue
				}
				mu.Lock()
				cfg = fromViper(v)
				fresh := cfg
				mu.Unlock()
				if onChange != nil {
					onChange(fresh)
				}
			case <-watcher.Errors:
			}
		}
	}()
	return watcher.Close, nil
}
