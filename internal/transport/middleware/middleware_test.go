package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("Middleware", func() {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	Describe("filterSensitiveBody", func() {
		It("should mask passwords and nested bank details", func() {
			out := filterSensitiveBody([]byte(`{"email":"a@b.co","password":"Secret123","account":{"accountNumber":"123","bankName":"BCA"}}`))

			var parsed map[string]interface{}
			Expect(json.Unmarshal([]byte(out), &parsed)).To(Succeed())
			Expect(parsed["email"]).To(Equal("a@b.co"))
			Expect(parsed["password"]).To(Equal("[FILTERED]"))
			account := parsed["account"].(map[string]interface{})
			Expect(account["accountNumber"]).To(Equal("[FILTERED]"))
			Expect(account["bankName"]).To(Equal("BCA"))
		})

		It("should mask issued tokens in responses", func() {
			out := filterSensitiveBody([]byte(`{"token":"eyJ...","tokenType":"Bearer"}`))

			Expect(out).NotTo(ContainSubstring("eyJ"))
		})
	})

	Describe("LoggingMiddleware", func() {
		It("should leave the request body readable downstream", func() {
			var seen string
			h := LoggingMiddleware(quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				seen = string(b)
				w.WriteHeader(http.StatusAccepted)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"password":"p"}`)))

			Expect(seen).To(Equal(`{"password":"p"}`))
			Expect(w.Code).To(Equal(http.StatusAccepted))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("should answer a panic with the opaque internal error", func() {
			h := RecoveryMiddleware(quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("db password leaked in panic")
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("internal server error"))
			Expect(w.Body.String()).NotTo(ContainSubstring("leaked"))
		})
	})

	Describe("RequestID", func() {
		It("should echo a supplied trace id", func() {
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(TraceHeader, "trace-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Expect(w.Header().Get(TraceHeader)).To(Equal("trace-123"))
		})

		It("should mint a trace id when none is sent", func() {
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Header().Get(TraceHeader)).To(HaveLen(36))
		})
	})

	Describe("CORS", func() {
		It("should short-circuit preflight requests", func() {
			called := false
			h := CORS("*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil))

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(called).To(BeFalse())
			Expect(w.Header().Get("Access-Control-Allow-Headers")).To(ContainSubstring("Authorization"))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should echo only listed origins", func() {
			h := CORS("https://app.example.com, https://admin.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", "https://admin.example.com")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://admin.example.com"))

			req.Header.Set("Origin", "https://evil.example.com")
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})
})
