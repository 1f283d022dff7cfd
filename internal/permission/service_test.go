package permission_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/authz"
	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"github.com/frahmantamala/invoice-admin/internal/permission"
	permissionPostgres "github.com/frahmantamala/invoice-admin/internal/permission/postgres"
	userPostgres "github.com/frahmantamala/invoice-admin/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Module Suite")
}

func openTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)

	Expect(db.AutoMigrate(
		&positionDatamodel.Position{},
		&userDatamodel.User{},
		&permissionDatamodel.Permission{},
		&permissionDatamodel.RolePermission{},
		&permissionDatamodel.PositionPermission{},
		&permissionDatamodel.UserPermission{},
	)).To(Succeed())
	return db
}

var _ = Describe("Permission Service", func() {
	var (
		db       *gorm.DB
		repo     *permissionPostgres.PermissionRepository
		resolver *permission.Resolver
		service  *permission.Service
		ctx      context.Context

		perms   map[string]*permissionDatamodel.Permission
		manager *positionDatamodel.Position
		master  *userDatamodel.User
		clerk   *userDatamodel.User
	)

	seedUser := func(employeeID, email string, role coreUser.Role, positionID *int64) *userDatamodel.User {
		u := &userDatamodel.User{
			EmployeeID:   employeeID,
			FirstName:    "First",
			LastName:     "Last",
			Email:        email,
			Phone:        "+6281234567",
			PasswordHash: "x",
			Role:         role.String(),
			PositionID:   positionID,
		}
		Expect(db.Create(u).Error).To(Succeed())
		return u
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = openTestDB()
		repo = permissionPostgres.NewPermissionRepository(db)
		resolver = permission.NewResolver(repo)

		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		metrics := observability.NewNopMetrics()
		gate := authz.NewGate(resolver, userPostgres.NewUserRepository(db), nil, metrics, lg)
		service = permission.NewService(repo, resolver, gate, nil, metrics, lg)

		perms = map[string]*permissionDatamodel.Permission{}
		for _, name := range coreUser.AllPermissions {
			p := &permissionDatamodel.Permission{Name: name}
			Expect(db.Create(p).Error).To(Succeed())
			perms[name] = p
		}

		for _, name := range coreUser.AllPermissions {
			Expect(db.Create(&permissionDatamodel.RolePermission{Role: "Master", PermissionID: perms[name].ID}).Error).To(Succeed())
		}
		Expect(db.Create(&permissionDatamodel.RolePermission{Role: "User", PermissionID: perms[coreUser.PermGenerateInvoice].ID}).Error).To(Succeed())

		manager = &positionDatamodel.Position{Name: "Manager"}
		Expect(db.Create(manager).Error).To(Succeed())
		for _, name := range []string{coreUser.PermGenerateInvoice, coreUser.PermViewAllInvoices} {
			Expect(db.Create(&permissionDatamodel.PositionPermission{PositionID: manager.ID, PermissionID: perms[name].ID}).Error).To(Succeed())
		}

		master = seedUser("m-1", "master@example.com", coreUser.RoleMaster, nil)
		clerk = seedUser("u-1", "clerk@example.com", coreUser.RoleUser, &manager.ID)
	})

	Describe("effective permissions", func() {
		It("should union role and position grants without duplicates", func() {
			names, err := resolver.Resolve(ctx, clerk.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{coreUser.PermGenerateInvoice, coreUser.PermViewAllInvoices}))
		})

		It("should include direct grants after assignment and drop them after removal", func() {
			dto := permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: coreUser.PermEditTemplate}

			Expect(service.AssignToUser(ctx, master.ID, dto)).To(Succeed())
			names, err := resolver.Resolve(ctx, clerk.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ContainElement(coreUser.PermEditTemplate))

			Expect(service.RemoveFromUser(ctx, master.ID, dto)).To(Succeed())
			names, err = resolver.Resolve(ctx, clerk.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).NotTo(ContainElement(coreUser.PermEditTemplate))
		})

		It("should be empty for an unknown user", func() {
			names, err := resolver.Resolve(ctx, 999)

			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})

		It("should let a user read their own set but not others'", func() {
			names, err := service.EffectivePermissions(ctx, clerk.ID, clerk.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(HaveLen(2))

			_, err = service.EffectivePermissions(ctx, clerk.ID, master.ID)
			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
		})
	})

	Describe("AssignToUser", func() {
		It("should report a repeated grant as a conflict", func() {
			dto := permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: coreUser.PermEditTemplate}
			Expect(service.AssignToUser(ctx, master.ID, dto)).To(Succeed())

			err := service.AssignToUser(ctx, master.ID, dto)

			Expect(errors.Is(err, internal.ErrPermissionAssigned)).To(BeTrue())
			var count int64
			Expect(db.Model(&permissionDatamodel.UserPermission{}).Where("user_id = ?", clerk.ID).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("should record who granted the permission", func() {
			Expect(service.AssignToUser(ctx, master.ID, permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: coreUser.PermEditTemplate})).To(Succeed())

			var grant permissionDatamodel.UserPermission
			Expect(db.Where("user_id = ?", clerk.ID).First(&grant).Error).To(Succeed())
			Expect(grant.GrantedBy).NotTo(BeNil())
			Expect(*grant.GrantedBy).To(Equal(master.ID))
		})

		It("should reject unknown users and permissions", func() {
			err := service.AssignToUser(ctx, master.ID, permission.AssignPermissionDTO{UserID: 999, PermissionName: coreUser.PermEditTemplate})
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())

			err = service.AssignToUser(ctx, master.ID, permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: "Nope"})
			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePermissionNotFound))
		})

		It("should forbid callers without ManagePermissions", func() {
			err := service.AssignToUser(ctx, clerk.ID, permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: coreUser.PermManageUsers})

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
		})
	})

	Describe("RemoveFromUser", func() {
		It("should report a missing grant as not assigned", func() {
			err := service.RemoveFromUser(ctx, master.ID, permission.AssignPermissionDTO{UserID: clerk.ID, PermissionName: coreUser.PermEditTemplate})

			Expect(errors.Is(err, internal.ErrPermissionNotAssigned)).To(BeTrue())
		})
	})

	Describe("role grants", func() {
		It("should widen every holder of the role", func() {
			Expect(service.AssignToRole(ctx, master.ID, "user", permission.RolePermissionDTO{PermissionName: coreUser.PermEditTemplate})).To(Succeed())

			ok, err := resolver.HasPermission(ctx, clerk.ID, coreUser.PermEditTemplate)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			err = service.AssignToRole(ctx, master.ID, "User", permission.RolePermissionDTO{PermissionName: coreUser.PermEditTemplate})
			Expect(errors.Is(err, internal.ErrPermissionAssigned)).To(BeTrue())
		})

		It("should reject an unknown role", func() {
			err := service.AssignToRole(ctx, master.ID, "Owner", permission.RolePermissionDTO{PermissionName: coreUser.PermEditTemplate})

			Expect(errors.Is(err, internal.ErrInvalidRole)).To(BeTrue())
		})

		It("should remove a role grant", func() {
			Expect(service.RemoveFromRole(ctx, master.ID, "User", permission.RolePermissionDTO{PermissionName: coreUser.PermGenerateInvoice})).To(Succeed())

			names, err := resolver.Resolve(ctx, clerk.ID)
			Expect(err).NotTo(HaveOccurred())
			// still granted through the Manager position
			Expect(names).To(ContainElement(coreUser.PermGenerateInvoice))
		})
	})

	Describe("CreatePermission", func() {
		It("should create and list a new permission", func() {
			p, err := service.CreatePermission(ctx, master.ID, permission.CreatePermissionDTO{Name: " ApproveInvoices ", Description: "approve"})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("ApproveInvoices"))

			list, err := service.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(len(coreUser.AllPermissions) + 1))
		})

		It("should reject a duplicate name", func() {
			_, err := service.CreatePermission(ctx, master.ID, permission.CreatePermissionDTO{Name: coreUser.PermManageUsers})

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicatePermission))
		})

		It("should validate the name", func() {
			_, err := service.CreatePermission(ctx, master.ID, permission.CreatePermissionDTO{Name: "has spaces"})

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})
})
