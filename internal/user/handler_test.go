package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/transport"
	"github.com/frahmantamala/invoice-admin/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeService struct {
	user.ServiceAPI

	lastOpts     user.SearchOptions
	lastCreate   user.CreateUserDTO
	lastFilename string
	lastUpload   []byte
	createErr    error
}

func (f *fakeService) CreateUser(ctx context.Context, callerID int64, dto user.CreateUserDTO) (*user.User, error) {
	f.lastCreate = dto
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &user.User{ID: 10, Email: dto.Email, Role: dto.Role}, nil
}

func (f *fakeService) ListUsers(ctx context.Context, callerID int64, opts user.SearchOptions) (*user.UserPage, error) {
	f.lastOpts = opts
	return &user.UserPage{Items: []*user.User{}, Total: 0, Take: opts.Take}, nil
}

func (f *fakeService) UploadSignature(ctx context.Context, callerID, userID int64, filename string, content io.Reader) (*user.SignatureResponse, error) {
	f.lastFilename = filename
	f.lastUpload, _ = io.ReadAll(content)
	return &user.SignatureResponse{UserID: userID, Signature: "signatures/x.png"}, nil
}

var _ = Describe("User Handler", func() {
	var (
		svc    *fakeService
		router chi.Router
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = &fakeService{}
		handler := user.NewHandler(transport.NewBaseHandler(slogger), svc)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithCallerID(r.Context(), 1)))
			})
		})
		router.Post("/users", handler.CreateUser)
		router.Get("/users", handler.ListUsers)
		router.Post("/users/{id}/signature", handler.UploadSignature)
	})

	It("should answer POST /users with 201", func() {
		body := `{"employeeId":"E1","firstName":"A","lastName":"B","email":"a@b.co","phone":"+1234567","password":"Secret123","role":"User"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(svc.lastCreate.EmployeeID).To(Equal("E1"))
	})

	It("should map service conflicts to 409", func() {
		svc.createErr = internal.ErrDuplicateEmail
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"a@b.co"}`))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("should reject unknown JSON fields", func() {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"isAdmin":true}`))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should parse search options from the query string", func() {
		req := httptest.NewRequest(http.MethodGet,
			"/users?searchTerm=ann&role=Admin&positionId=3&sortBy=email&sortDescending=true&skip=5&take=20&includeAddress=true", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.lastOpts.SearchTerm).To(Equal("ann"))
		Expect(svc.lastOpts.Role).To(Equal("Admin"))
		Expect(*svc.lastOpts.PositionID).To(Equal(int64(3)))
		Expect(svc.lastOpts.SortDescending).To(BeTrue())
		Expect(svc.lastOpts.Skip).To(Equal(5))
		Expect(svc.lastOpts.Take).To(Equal(20))
		Expect(svc.lastOpts.Include.Address).To(BeTrue())
		Expect(svc.lastOpts.Include.InvoiceData).To(BeFalse())
	})

	It("should reject a negative skip", func() {
		req := httptest.NewRequest(http.MethodGet, "/users?skip=-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should pass multipart uploads to the service", func() {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "sig.png")
		Expect(err).NotTo(HaveOccurred())
		_, _ = part.Write(pngBytes)
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/users/7/signature", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.lastFilename).To(Equal("sig.png"))
		Expect(svc.lastUpload).To(Equal(pngBytes))

		var resp user.SignatureResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.UserID).To(Equal(int64(7)))
	})
})
