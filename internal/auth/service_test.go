package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

type mockCredentialRepository struct {
	byEmail    map[string]*Credentials
	shouldFail bool
}

func newMockCredentialRepository() *mockCredentialRepository {
	hash, _ := bcrypt.GenerateFromPassword([]byte("Correct1pass"), bcrypt.MinCost)
	return &mockCredentialRepository{
		byEmail: map[string]*Credentials{
			"master@example.com": {UserID: 1, Email: "master@example.com", PasswordHash: string(hash), Role: "Master"},
			"user@example.com":   {UserID: 2, Email: "user@example.com", PasswordHash: string(hash), Role: "User"},
		},
	}
}

func (m *mockCredentialRepository) FindByEmail(ctx context.Context, email string) (*Credentials, error) {
	if m.shouldFail {
		return nil, errors.New("database down")
	}
	c, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return c, nil
}

type memoryLockout struct {
	policy   LockoutPolicy
	failures map[int64]int
	until    map[int64]time.Time
}

func newMemoryLockout() *memoryLockout {
	return &memoryLockout{policy: DefaultLockoutPolicy(), failures: map[int64]int{}, until: map[int64]time.Time{}}
}

func (m *memoryLockout) LockedUntil(ctx context.Context, userID int64) (time.Time, bool, error) {
	u, ok := m.until[userID]
	if !ok || !u.After(time.Now()) {
		return time.Time{}, false, nil
	}
	return u, true, nil
}

func (m *memoryLockout) RegisterFailure(ctx context.Context, userID int64) (bool, error) {
	m.failures[userID]++
	if m.failures[userID] >= m.policy.MaxFailedAttempts {
		m.failures[userID] = 0
		m.until[userID] = time.Now().Add(m.policy.LockoutDuration)
		return true, nil
	}
	return false, nil
}

func (m *memoryLockout) Reset(ctx context.Context, userID int64) error {
	delete(m.failures, userID)
	delete(m.until, userID)
	return nil
}

type mockResolver struct {
	perms map[int64][]string
}

func (m *mockResolver) Resolve(ctx context.Context, userID int64) ([]string, error) {
	return m.perms[userID], nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service   *Service
		repo      *mockCredentialRepository
		lockout   *memoryLockout
		tokenGen  *JWTTokenGenerator
		publisher *recordingPublisher
		ctx       context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		repo = newMockCredentialRepository()
		lockout = newMemoryLockout()
		tokenGen = NewJWTTokenGenerator("test-secret", "invoice-admin", "invoice-admin-api", time.Hour)
		publisher = &recordingPublisher{}
		resolver := &mockResolver{perms: map[int64][]string{
			1: {"GenerateInvoice", "ManageUsers"},
			2: {"GenerateInvoice"},
		}}
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(repo, lockout, resolver, tokenGen, publisher, observability.NewNopMetrics(), lg)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should issue a token carrying roles and permissions", func() {
				// Given
				dto := LoginDTO{Email: "master@example.com", Password: "Correct1pass"}

				// When
				session, err := service.Authenticate(ctx, dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(session.Token).ToNot(gomega.BeEmpty())
				gomega.Expect(session.TokenType).To(gomega.Equal("Bearer"))

				claims, err := service.ValidateToken(session.Token)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.Subject).To(gomega.Equal("1"))
				gomega.Expect(claims.Email).To(gomega.Equal("master@example.com"))
				gomega.Expect(claims.Roles).To(gomega.Equal([]string{"Master"}))
				gomega.Expect(claims.Permissions).To(gomega.ConsistOf("GenerateInvoice", "ManageUsers"))
				gomega.Expect(claims.Issuer).To(gomega.Equal("invoice-admin"))
				gomega.Expect([]string(claims.Audience)).To(gomega.ContainElement("invoice-admin-api"))
			})

			ginkgo.It("should match the email case-insensitively", func() {
				session, err := service.Authenticate(ctx, LoginDTO{Email: "  USER@Example.com ", Password: "Correct1pass"})

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(session.UserID).To(gomega.Equal(int64(2)))
			})

			ginkgo.It("should expire one hour after issuance", func() {
				before := time.Now()
				session, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(session.ExpiresAt).To(gomega.BeTemporally("~", before.Add(time.Hour), 5*time.Second))
			})

			ginkgo.It("should publish a login audit event", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(publisher.events).To(gomega.HaveLen(1))
				gomega.Expect(publisher.events[0].EventType()).To(gomega.Equal(events.EventTypeLoginSucceeded))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return the same error for unknown email and wrong password", func() {
				_, errUnknown := service.Authenticate(ctx, LoginDTO{Email: "nobody@example.com", Password: "Correct1pass"})
				_, errWrong := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Wrong1pass"})

				gomega.Expect(errUnknown).To(gomega.MatchError(internal.ErrInvalidCredentials))
				gomega.Expect(errWrong).To(gomega.MatchError(internal.ErrInvalidCredentials))
				gomega.Expect(errUnknown.Error()).To(gomega.Equal(errWrong.Error()))
			})

			ginkgo.It("should reject missing fields as a validation error", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "", Password: ""})

				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			})

			ginkgo.It("should surface repository failures as internal errors", func() {
				repo.shouldFail = true

				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})

				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInternal))
			})
		})

		ginkgo.Context("lockout", func() {
			ginkgo.It("should lock the account after five consecutive failures", func() {
				// Given
				for i := 0; i < 5; i++ {
					_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Wrong1pass"})
					gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
				}

				// When
				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})

				// Then
				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
				_, locked, _ := lockout.LockedUntil(ctx, 2)
				gomega.Expect(locked).To(gomega.BeTrue())
			})

			ginkgo.It("should reset the failure count on success", func() {
				for i := 0; i < 4; i++ {
					_, _ = service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Wrong1pass"})
				}
				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				_, _ = service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Wrong1pass"})
				_, err = service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			})

			ginkgo.It("should allow login again once the lock has expired", func() {
				lockout.until[2] = time.Now().Add(-time.Second)

				_, err := service.Authenticate(ctx, LoginDTO{Email: "user@example.com", Password: "Correct1pass"})

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			})
		})
	})

	ginkgo.Describe("ValidateToken", func() {
		ginkgo.It("should reject an empty token", func() {
			_, err := service.ValidateToken("")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrMissingToken))
		})

		ginkgo.It("should reject a token signed with another secret", func() {
			other := NewJWTTokenGenerator("other-secret", "invoice-admin", "invoice-admin-api", time.Hour)
			token, _, err := other.GenerateToken(Identity{UserID: 1, Email: "a@example.com"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateToken(token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})

		ginkgo.It("should reject a token for another audience", func() {
			other := NewJWTTokenGenerator("test-secret", "invoice-admin", "someone-else", time.Hour)
			token, _, _ := other.GenerateToken(Identity{UserID: 1})

			_, err := service.ValidateToken(token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})

		ginkgo.It("should report expired tokens distinctly", func() {
			expired := NewJWTTokenGenerator("test-secret", "invoice-admin", "invoice-admin-api", time.Hour)
			expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
			token, _, _ := expired.GenerateToken(Identity{UserID: 1})

			_, err := service.ValidateToken(token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
		})

		ginkgo.It("should reject tokens using the none algorithm", func() {
			claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    "invoice-admin",
				Audience:  jwt.ClaimStrings{"invoice-admin-api"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateToken(token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})
	})
})
