package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	auditDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/audit"
	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	signupDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/signup"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// database holds the two handles the process uses: gorm for the repositories and sqlx,
// sharing the same pool, for the audit store and health checks.
type database struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

func (d *database) Close() error {
	return d.SQL.Close()
}

// initDB opens the configured driver and verifies the connection.
func initDB(cfg internal.DatabaseConfig, lg *slog.Logger) (*database, error) {
	var (
		dialector  gorm.Dialector
		driverName string
	)
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.Source)
		driverName = "pgx"
	case "sqlite":
		dialector = sqlite.Open(cfg.Source)
		driverName = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.New(slog.NewLogLogger(lg.Handler(), slog.LevelWarn), gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &database{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, driverName)}, nil
}

// schemaModels lists every table for the sqlite path, where goose's postgres
// migrations do not apply.
func schemaModels() []interface{} {
	return []interface{}{
		&positionDatamodel.Position{},
		&userDatamodel.User{},
		&userDatamodel.Address{},
		&userDatamodel.AccountDetails{},
		&userDatamodel.InvoiceData{},
		&userDatamodel.InvoiceHistory{},
		&permissionDatamodel.Permission{},
		&permissionDatamodel.RolePermission{},
		&permissionDatamodel.PositionPermission{},
		&permissionDatamodel.UserPermission{},
		&signupDatamodel.SignupRequest{},
		&auditDatamodel.AuditLog{},
	}
}
