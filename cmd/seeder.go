package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	clearData      bool
	masterEmail    string
	masterPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed permissions, role grants and the bootstrap Master account",
	Long:  `Seed the well-known permissions, their role and position grants, and one Master account. Safe to run repeatedly.`,
	RunE:  runSeed,
}

var rolePermissions = map[coreUser.Role][]string{
	coreUser.RoleMaster: coreUser.AllPermissions,
	coreUser.RoleAdmin:  {coreUser.PermGenerateInvoice, coreUser.PermEditTemplate, coreUser.PermViewAllInvoices},
	coreUser.RoleUser:   {coreUser.PermGenerateInvoice},
}

var seededPositions = []struct {
	Name        string
	Description string
	Permissions []string
}{
	{"Manager", "Team manager with invoice oversight", []string{coreUser.PermGenerateInvoice, coreUser.PermViewAllInvoices}},
}

var permissionDescriptions = map[string]string{
	coreUser.PermGenerateInvoice:   "Can generate invoices",
	coreUser.PermEditTemplate:      "Can edit invoice templates",
	coreUser.PermViewAllInvoices:   "Can view every user's invoices",
	coreUser.PermManageUsers:       "Can create and manage users",
	coreUser.PermManagePermissions: "Can grant and revoke permissions",
	coreUser.PermManagePositions:   "Can create positions and reassign users",
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clearData {
			if err := clearSeededData(tx); err != nil {
				return err
			}
			lg.Warn("cleared grants, positions and users before seeding")
		}

		ids, err := seedPermissions(tx)
		if err != nil {
			return err
		}

		for role, names := range rolePermissions {
			for _, name := range names {
				grant := permissionDatamodel.RolePermission{Role: role.String(), PermissionID: ids[name]}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error; err != nil {
					return fmt.Errorf("failed to grant %s to role %s: %w", name, role, err)
				}
			}
			lg.Info("seeded role permissions", "role", role, "count", len(names))
		}

		for _, p := range seededPositions {
			pos := positionDatamodel.Position{Name: p.Name, Description: p.Description}
			if err := tx.Where("name = ?", p.Name).FirstOrCreate(&pos).Error; err != nil {
				return fmt.Errorf("failed to seed position %s: %w", p.Name, err)
			}
			for _, name := range p.Permissions {
				grant := permissionDatamodel.PositionPermission{PositionID: pos.ID, PermissionID: ids[name]}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error; err != nil {
					return fmt.Errorf("failed to grant %s to position %s: %w", name, p.Name, err)
				}
			}
			lg.Info("seeded position", "name", p.Name, "id", pos.ID)
		}

		created, err := seedMaster(tx, cfg.Security.BCryptCost)
		if err != nil {
			return err
		}
		if created {
			lg.Info("seeded master account", "email", masterEmail)
		} else {
			lg.Info("master account already exists", "email", masterEmail)
		}
		return nil
	})
}

func seedPermissions(tx *gorm.DB) (map[string]int64, error) {
	ids := make(map[string]int64, len(coreUser.AllPermissions))
	for _, name := range coreUser.AllPermissions {
		perm := permissionDatamodel.Permission{Name: name, Description: permissionDescriptions[name]}
		if err := tx.Where("name = ?", name).FirstOrCreate(&perm).Error; err != nil {
			return nil, fmt.Errorf("failed to seed permission %s: %w", name, err)
		}
		ids[name] = perm.ID
	}
	return ids, nil
}

func seedMaster(tx *gorm.DB, cost int) (bool, error) {
	if masterPassword == "" {
		return false, errors.New("--master-password is required")
	}

	var count int64
	if err := tx.Model(&userDatamodel.User{}).Where("LOWER(email) = LOWER(?)", masterEmail).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up master account: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(masterPassword), cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash master password: %w", err)
	}

	now := time.Now().UTC()
	master := userDatamodel.User{
		EmployeeID:   "MASTER-001",
		FirstName:    "System",
		LastName:     "Master",
		Email:        masterEmail,
		Phone:        "+000000000",
		PasswordHash: string(hash),
		Role:         coreUser.RoleMaster.String(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&master).Error; err != nil {
		return false, fmt.Errorf("failed to insert master account: %w", err)
	}
	return true, nil
}

// clearSeededData removes grants before the rows they reference.
func clearSeededData(tx *gorm.DB) error {
	tables := []string{
		"user_permissions", "position_permissions", "role_permissions",
		"invoice_histories", "invoice_data", "account_details", "addresses",
		"signup_requests", "users", "positions",
	}
	for _, t := range tables {
		if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
	seedCmd.Flags().StringVar(&masterEmail, "master-email", "master@invoice-admin.local", "email of the bootstrap Master account")
	seedCmd.Flags().StringVar(&masterPassword, "master-password", "", "password of the bootstrap Master account")
}
