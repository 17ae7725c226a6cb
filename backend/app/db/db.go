package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string // "mysql" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Path     string // sqlite file path, ":memory:" for tests
}

func Connect(cfg Config) (*gorm.DB, error) {
	// TranslateError lets callers test errors.Is(err, gorm.ErrDuplicatedKey)
	// regardless of driver.
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "vdi-fleet.db"
		}
		return gorm.Open(sqlite.Open(path), gcfg)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		return gorm.Open(mysql.Open(dsn), gcfg)
	}
}
