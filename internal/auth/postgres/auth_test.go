package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/invoice-admin/internal/auth"
	authPostgres "github.com/frahmantamala/invoice-admin/internal/auth/postgres"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAuthPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Postgres Suite")
}

var _ = Describe("Auth PostgreSQL Repository", func() {
	var (
		db      *gorm.DB
		repo    *authPostgres.Repository
		tracker *authPostgres.LockoutTracker
		ctx     context.Context
		user    *userDatamodel.User
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&userDatamodel.User{})).To(Succeed())

		user = &userDatamodel.User{
			EmployeeID:   "EMP-001",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			Email:        "ada@example.com",
			Phone:        "+100000000",
			PasswordHash: "hash",
			Role:         "Admin",
		}
		Expect(db.Create(user).Error).To(Succeed())

		ctx = context.Background()
		repo = authPostgres.NewRepository(db)
		tracker = authPostgres.NewLockoutTracker(db, auth.LockoutPolicy{MaxFailedAttempts: 3, LockoutDuration: time.Minute})
	})

	Describe("FindByEmail", func() {
		It("should find the account regardless of case", func() {
			creds, err := repo.FindByEmail(ctx, "ADA@Example.COM")

			Expect(err).NotTo(HaveOccurred())
			Expect(creds).NotTo(BeNil())
			Expect(creds.UserID).To(Equal(user.ID))
			Expect(creds.Role).To(Equal("Admin"))
			Expect(creds.PasswordHash).To(Equal("hash"))
		})

		It("should return nil for an unknown email", func() {
			creds, err := repo.FindByEmail(ctx, "nobody@example.com")

			Expect(err).NotTo(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("LockoutTracker", func() {
		It("should lock once the threshold is reached", func() {
			for i := 0; i < 2; i++ {
				locked, err := tracker.RegisterFailure(ctx, user.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(locked).To(BeFalse())
			}

			locked, err := tracker.RegisterFailure(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeTrue())

			until, isLocked, err := tracker.LockedUntil(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(isLocked).To(BeTrue())
			Expect(until).To(BeTemporally(">", time.Now()))
		})

		It("should clear counters on reset", func() {
			_, _ = tracker.RegisterFailure(ctx, user.ID)
			_, _ = tracker.RegisterFailure(ctx, user.ID)
			Expect(tracker.Reset(ctx, user.ID)).To(Succeed())

			locked, err := tracker.RegisterFailure(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeFalse())

			var row userDatamodel.User
			Expect(db.First(&row, user.ID).Error).To(Succeed())
			Expect(row.FailedLoginCount).To(Equal(1))
		})

		It("should start a new count once the failure window has passed", func() {
			_, _ = tracker.RegisterFailure(ctx, user.ID)
			_, _ = tracker.RegisterFailure(ctx, user.ID)

			stale := time.Now().Add(-2 * time.Minute)
			Expect(db.Model(&userDatamodel.User{}).Where("id = ?", user.ID).Update("first_failed_at", stale).Error).To(Succeed())

			locked, err := tracker.RegisterFailure(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeFalse())

			var row userDatamodel.User
			Expect(db.First(&row, user.ID).Error).To(Succeed())
			Expect(row.FailedLoginCount).To(Equal(1))
			Expect(row.FirstFailedAt).NotTo(BeNil())
			Expect(*row.FirstFailedAt).To(BeTemporally("~", time.Now(), 5*time.Second))
		})

		It("should treat a past lockout end as unlocked", func() {
			past := time.Now().Add(-time.Minute)
			Expect(db.Model(&userDatamodel.User{}).Where("id = ?", user.ID).Update("lockout_end", past).Error).To(Succeed())

			_, isLocked, err := tracker.LockedUntil(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(isLocked).To(BeFalse())
		})
	})
})
