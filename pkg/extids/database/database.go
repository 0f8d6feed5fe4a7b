// Package database opens the gorm connection used by every service.
package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure-Go driver registered as "sqlite"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver used by gorm.io/driver/sqlite
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver
	DriverPure = "sqlite"
)

// Open returns a new connection. Foreign keys are switched on for both
// drivers so restrict and cascade rules hold.
func Open(driver, path string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", DriverCGO:
		dialector = sqlite.Open(withParam(path, "_foreign_keys=on"))
	case DriverPure:
		dialector = sqlite.Dialector{DriverName: DriverPure, DSN: withParam(path, "_pragma=foreign_keys(1)")}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

func withParam(path, param string) string {
	if strings.Contains(path, "?") {
		return path + "&" + param
	}
	return path + "?" + param
}
