package store

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DriverFactory opens a gorm.Dialector for a DSN.
type DriverFactory func(dsn string) gorm.Dialector

var (
	driversMu sync.RWMutex
	drivers   = map[string]DriverFactory{
		"sqlite":   sqlite.Open,
		"postgres": openPostgres,
	}
)

// openPostgres disables server-side prepared statements so the store also
// works behind a transaction-pooling proxy.
func openPostgres(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
}

// Dialector returns the dialector registered under driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return factory(dsn), nil
}

// RegisterDriver adds or replaces a driver, e.g. a sqlite build without cgo.
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}
