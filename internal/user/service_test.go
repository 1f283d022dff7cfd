package user_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/authz"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"github.com/frahmantamala/invoice-admin/internal/storage"
	"github.com/frahmantamala/invoice-admin/internal/user"
	userPostgres "github.com/frahmantamala/invoice-admin/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Module Suite")
}

// staticResolver grants permissions from a fixed table.
type staticResolver struct {
	perms map[int64][]string
}

func (r *staticResolver) Resolve(ctx context.Context, userID int64) ([]string, error) {
	return r.perms[userID], nil
}

func (r *staticResolver) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	for _, p := range r.perms[userID] {
		if p == name {
			return true, nil
		}
	}
	return false, nil
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
		&userDatamodel.Address{},
		&userDatamodel.AccountDetails{},
		&userDatamodel.InvoiceData{},
		&userDatamodel.InvoiceHistory{},
	)).To(Succeed())
	return db
}

func seedUser(db *gorm.DB, employeeID, email string, role coreUser.Role) *userDatamodel.User {
	u := &userDatamodel.User{
		EmployeeID:   employeeID,
		FirstName:    strings.ToUpper(employeeID[:1]) + "irst",
		LastName:     "Last",
		Email:        email,
		Phone:        "+6281234567",
		PasswordHash: "x",
		Role:         role.String(),
	}
	Expect(db.Create(u).Error).To(Succeed())
	return u
}

func validCreateDTO(role string) user.CreateUserDTO {
	return user.CreateUserDTO{
		EmployeeID: "EMP-100",
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      "Grace.Hopper@Example.com",
		Phone:      "+6281111111",
		Password:   "Secret123",
		Role:       role,
	}
}

// flakyFiles fails Put when putErr is set and records deleted keys.
type flakyFiles struct {
	storage.FileStorage
	putErr  error
	deleted []string
}

func (f *flakyFiles) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.FileStorage.Put(ctx, key, content, contentType)
}

func (f *flakyFiles) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.FileStorage.Delete(ctx, key)
}

// brokenSignatureRepo fails the pointer update only.
type brokenSignatureRepo struct {
	*userPostgres.UserRepository
}

func (brokenSignatureRepo) UpdateSignature(ctx context.Context, userID int64, key string) error {
	return errors.New("connection reset")
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

var _ = Describe("User Service", func() {
	var (
		db       *gorm.DB
		repo     *userPostgres.UserRepository
		resolver *staticResolver
		gate     *authz.Gate
		files    *flakyFiles
		lg       *slog.Logger
		service  *user.Service
		ctx      context.Context

		master *userDatamodel.User
		admin  *userDatamodel.User
		plain  *userDatamodel.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openTestDB()
		repo = userPostgres.NewUserRepository(db)

		master = seedUser(db, "m-1", "master@example.com", coreUser.RoleMaster)
		admin = seedUser(db, "a-1", "admin@example.com", coreUser.RoleAdmin)
		plain = seedUser(db, "u-1", "plain@example.com", coreUser.RoleUser)

		resolver = &staticResolver{perms: map[int64][]string{
			master.ID: coreUser.AllPermissions,
			admin.ID:  {coreUser.PermGenerateInvoice},
			plain.ID:  {coreUser.PermGenerateInvoice},
		}}

		lg = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		gate = authz.NewGate(resolver, repo, nil, observability.NewNopMetrics(), lg)

		dir, err := os.MkdirTemp("", "user-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		fsStore, err := storage.NewFilesystem(dir)
		Expect(err).NotTo(HaveOccurred())
		files = &flakyFiles{FileStorage: fsStore}

		service = user.NewService(repo, gate, resolver, files, nil, lg, 4)
	})

	Describe("CreateUser", func() {
		It("should create a user with a normalized email and attached permissions", func() {
			created, err := service.CreateUser(ctx, master.ID, validCreateDTO("User"))

			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.Email).To(Equal("grace.hopper@example.com"))
			Expect(created.Role).To(Equal("User"))
			Expect(created.Permissions).NotTo(BeNil())
		})

		It("should reject an unknown role before checking the caller", func() {
			_, err := service.CreateUser(ctx, plain.ID, validCreateDTO("Owner"))
			Expect(err).To(MatchError(internal.ErrInvalidRole))
		})

		It("should reject a duplicate email regardless of case and write nothing", func() {
			dto := validCreateDTO("User")
			dto.Email = "PLAIN@example.com"

			_, err := service.CreateUser(ctx, master.ID, dto)

			Expect(err).To(MatchError(internal.ErrDuplicateEmail))
			var count int64
			db.Model(&userDatamodel.User{}).Count(&count)
			Expect(count).To(Equal(int64(3)))
		})

		It("should reject a duplicate employee id", func() {
			dto := validCreateDTO("User")
			dto.EmployeeID = "u-1"

			_, err := service.CreateUser(ctx, master.ID, dto)
			Expect(err).To(MatchError(internal.ErrDuplicateEmployeeID))
		})

		It("should reject weak passwords", func() {
			dto := validCreateDTO("User")
			dto.Password = "alllowercase"

			_, err := service.CreateUser(ctx, master.ID, dto)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("should reject an unknown position", func() {
			dto := validCreateDTO("User")
			missing := int64(999)
			dto.PositionID = &missing

			_, err := service.CreateUser(ctx, master.ID, dto)
			Expect(err).To(MatchError(internal.ErrPositionNotFound))
		})

		DescribeTable("role hierarchy",
			func(caller func() int64, role string, allowed bool) {
				_, err := service.CreateUser(ctx, caller(), validCreateDTO(role))
				if allowed {
					Expect(err).NotTo(HaveOccurred())
					return
				}
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
			},
			Entry("master creates master", func() int64 { return master.ID }, "Master", true),
			Entry("master creates admin", func() int64 { return master.ID }, "Admin", true),
			Entry("admin creates admin", func() int64 { return admin.ID }, "Admin", true),
			Entry("admin creates user", func() int64 { return admin.ID }, "User", true),
			Entry("admin cannot create master", func() int64 { return admin.ID }, "Master", false),
			Entry("user cannot create user", func() int64 { return plain.ID }, "User", false),
			Entry("user cannot create admin", func() int64 { return plain.ID }, "Admin", false),
		)

		It("should let a plain user with ManageUsers create users", func() {
			resolver.perms[plain.ID] = []string{coreUser.PermManageUsers}

			_, err := service.CreateUser(ctx, plain.ID, validCreateDTO("User"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should cap Master accounts at three", func() {
			seedUser(db, "m-2", "m2@example.com", coreUser.RoleMaster)
			seedUser(db, "m-3", "m3@example.com", coreUser.RoleMaster)

			_, err := service.CreateUser(ctx, master.ID, validCreateDTO("Master"))

			Expect(err).To(MatchError(internal.ErrMasterLimitReached))
		})
	})

	Describe("GetUser and Me", func() {
		It("should let callers read themselves without ManageUsers", func() {
			me, err := service.Me(ctx, plain.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(me.Email).To(Equal("plain@example.com"))
			Expect(me.Permissions).To(ConsistOf(coreUser.PermGenerateInvoice))
		})

		It("should forbid reading other users without ManageUsers", func() {
			_, err := service.GetUser(ctx, plain.ID, admin.ID, user.IncludeOptions{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
		})

		It("should report unknown users", func() {
			_, err := service.GetUser(ctx, master.ID, 4242, user.IncludeOptions{})
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})
	})

	Describe("ListUsers", func() {
		It("should filter by search term case-insensitively", func() {
			page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{SearchTerm: "ADMIN"})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Items[0].ID).To(Equal(admin.ID))
		})

		It("should match percent and underscore literally", func() {
			for _, term := range []string{"%", "_", "p_ain", "%example%"} {
				page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{SearchTerm: term})

				Expect(err).NotTo(HaveOccurred())
				Expect(page.Total).To(BeZero(), "term %q", term)
			}

			underscored := seedUser(db, "x-1", "under_score@example.com", coreUser.RoleUser)

			page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{SearchTerm: "under_score"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Items[0].ID).To(Equal(underscored.ID))

			page, err = service.ListUsers(ctx, master.ID, user.SearchOptions{SearchTerm: "underXscore"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(BeZero())
		})

		It("should page and sort", func() {
			page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{SortBy: "email", Take: 2})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(3)))
			Expect(page.Items).To(HaveLen(2))
			Expect(page.Items[0].Email).To(Equal("admin@example.com"))
			Expect(page.Items[1].Email).To(Equal("master@example.com"))

			page, err = service.ListUsers(ctx, master.ID, user.SearchOptions{SortBy: "email", Skip: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(1))
			Expect(page.Items[0].Email).To(Equal("plain@example.com"))
		})

		It("should default and cap the page size", func() {
			page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{Take: 1000})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Take).To(Equal(user.MaxPageSize))
		})

		It("should filter by role", func() {
			page, err := service.ListUsers(ctx, master.ID, user.SearchOptions{Role: "master"})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
		})

		It("should require ManageUsers", func() {
			_, err := service.ListUsers(ctx, admin.ID, user.SearchOptions{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientPermission))
		})
	})

	Describe("UpdatePosition", func() {
		It("should move the user to an existing position", func() {
			pos := &positionDatamodel.Position{Name: "Manager"}
			Expect(db.Create(pos).Error).To(Succeed())

			Expect(service.UpdatePosition(ctx, master.ID, plain.ID, user.UpdatePositionDTO{PositionID: pos.ID})).To(Succeed())

			var row userDatamodel.User
			Expect(db.First(&row, plain.ID).Error).To(Succeed())
			Expect(row.PositionID).NotTo(BeNil())
			Expect(*row.PositionID).To(Equal(pos.ID))
		})

		It("should require ManagePositions", func() {
			err := service.UpdatePosition(ctx, admin.ID, plain.ID, user.UpdatePositionDTO{PositionID: 1})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeForbidden))
		})

		It("should report a missing position", func() {
			err := service.UpdatePosition(ctx, master.ID, plain.ID, user.UpdatePositionDTO{PositionID: 77})
			Expect(err).To(MatchError(internal.ErrPositionNotFound))
		})
	})

	Describe("sub-records", func() {
		address := user.AddressDTO{AddressLine1: "1 Main St", City: "Jakarta", PostalCode: "10110", Country: "ID"}

		It("should add an address once and then only update it", func() {
			_, err := service.AddAddress(ctx, master.ID, plain.ID, address)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.AddAddress(ctx, master.ID, plain.ID, address)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeRecordExists))

			changed := address
			changed.City = "Bandung"
			out, err := service.UpdateAddress(ctx, master.ID, plain.ID, changed)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.City).To(Equal("Bandung"))
		})

		It("should not update missing account details", func() {
			_, err := service.UpdateAccountDetails(ctx, master.ID, plain.ID, user.AccountDetailsDTO{BankName: "BCA", AccountNumber: "123"})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeRecordNotFound))
		})

		It("should reject sub-records for unknown users", func() {
			_, err := service.AddAddress(ctx, master.ID, 999, address)
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})

		It("should record invoice history on every write", func() {
			dto := user.InvoiceDataDTO{InvoiceNumber: "INV-1", Description: "Consulting", Rate: 10, GrossTotal: 100}
			_, err := service.AddInvoiceData(ctx, master.ID, plain.ID, dto)
			Expect(err).NotTo(HaveOccurred())

			dto.GrossTotal = 150
			updated, err := service.UpdateInvoiceData(ctx, master.ID, plain.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.GrossTotal).To(Equal(150.0))

			got, err := service.GetUser(ctx, master.ID, plain.ID, user.IncludeOptions{InvoiceHistory: true, InvoiceData: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.InvoiceData).To(HaveLen(1))
			Expect(got.InvoiceHistory).To(HaveLen(2))
		})

		It("should reject duplicate invoice numbers across users", func() {
			dto := user.InvoiceDataDTO{InvoiceNumber: "INV-9", Description: "Work", Rate: 1, GrossTotal: 1}
			_, err := service.AddInvoiceData(ctx, master.ID, plain.ID, dto)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.AddInvoiceData(ctx, master.ID, admin.ID, dto)
			Expect(err).To(MatchError(internal.ErrDuplicateInvoiceNumber))
		})
	})

	Describe("UploadSignature", func() {
		It("should store the file and point the user at it", func() {
			out, err := service.UploadSignature(ctx, master.ID, plain.ID, "sig.PNG", bytes.NewReader(pngBytes))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Signature).To(HavePrefix("signatures/"))
			Expect(out.Signature).To(HaveSuffix(".png"))

			var row userDatamodel.User
			Expect(db.First(&row, plain.ID).Error).To(Succeed())
			Expect(row.Signature).NotTo(BeNil())
			Expect(*row.Signature).To(Equal(out.Signature))
		})

		It("should leave the user without a signature when storing fails", func() {
			files.putErr = errors.New("bucket unavailable")

			_, err := service.UploadSignature(ctx, master.ID, plain.ID, "sig.png", bytes.NewReader(pngBytes))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))

			var row userDatamodel.User
			Expect(db.First(&row, plain.ID).Error).To(Succeed())
			Expect(row.Signature).To(BeNil())
		})

		It("should remove the stored file when the pointer update fails", func() {
			broken := user.NewService(brokenSignatureRepo{repo}, gate, resolver, files, nil, lg, 4)

			_, err := broken.UploadSignature(ctx, master.ID, plain.ID, "sig.png", bytes.NewReader(pngBytes))

			Expect(err).To(HaveOccurred())
			Expect(files.deleted).To(HaveLen(1))
			Expect(files.deleted[0]).To(HavePrefix("signatures/"))

			_, err = files.Get(ctx, files.deleted[0])
			Expect(err).To(MatchError(storage.ErrObjectNotFound))

			var row userDatamodel.User
			Expect(db.First(&row, plain.ID).Error).To(Succeed())
			Expect(row.Signature).To(BeNil())
		})

		It("should reject other file types", func() {
			_, err := service.UploadSignature(ctx, master.ID, plain.ID, "sig.gif", bytes.NewReader(pngBytes))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
		})

		It("should reject files over 2 MiB", func() {
			big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, user.MaxSignatureSize)...)

			_, err := service.UploadSignature(ctx, master.ID, plain.ID, "sig.png", bytes.NewReader(big))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})
})
