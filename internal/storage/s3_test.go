package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/frahmantamala/invoice-admin/internal/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordedRequest struct {
	method   string
	path     string
	checksum string
	body     string
}

// fakeS3 answers path-style requests for a single bucket from memory.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	requests []recordedRequest
	deny     bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{
		method:   r.Method,
		path:     r.URL.Path,
		checksum: r.Header.Get("X-Amz-Meta-Checksum-Sha256"),
		body:     string(body),
	})

	w.Header().Set("Content-Type", "application/xml")
	if f.deny {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}

	switch r.Method {
	case http.MethodPut:
		f.objects[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		obj, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, obj)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var _ = Describe("S3 storage", func() {
	var (
		backend *fakeS3
		store   storage.FileStorage
		ctx     context.Context
	)

	BeforeEach(func() {
		backend = &fakeS3{objects: map[string]string{}}
		srv := httptest.NewServer(backend)
		DeferCleanup(srv.Close)

		ctx = context.Background()
		var err error
		store, err = storage.New(ctx, storage.Config{
			Driver:         "s3",
			S3Bucket:       "signatures",
			S3Region:       "us-east-1",
			S3Endpoint:     srv.URL,
			S3AccessKey:    "test-access",
			S3SecretKey:    "test-secret",
			S3UsePathStyle: true,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should require a bucket", func() {
		_, err := storage.New(ctx, storage.Config{Driver: "s3", S3Region: "us-east-1"})
		Expect(err).To(MatchError(ContainSubstring("bucket is required")))
	})

	It("should put objects under the bucket path with a checksum", func() {
		Expect(store.Put(ctx, "signatures/1_100.png", strings.NewReader("png-bytes"), "image/png")).To(Succeed())

		Expect(backend.requests).To(HaveLen(1))
		req := backend.requests[0]
		Expect(req.method).To(Equal(http.MethodPut))
		Expect(req.path).To(Equal("/signatures/signatures/1_100.png"))
		Expect(req.checksum).To(HaveLen(64))
		Expect(req.body).To(ContainSubstring("png-bytes"))
	})

	It("should read back stored objects", func() {
		backend.objects["/signatures/signatures/2_200.png"] = "stored"

		rc, err := store.Get(ctx, "signatures/2_200.png")
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		data, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("stored"))
	})

	It("should map a missing key to ErrObjectNotFound", func() {
		_, err := store.Get(ctx, "signatures/missing.png")
		Expect(err).To(MatchError(storage.ErrObjectNotFound))
	})

	It("should delete objects", func() {
		backend.objects["/signatures/signatures/3_300.png"] = "stored"

		Expect(store.Delete(ctx, "signatures/3_300.png")).To(Succeed())
		Expect(backend.objects).To(BeEmpty())
	})

	It("should surface upload failures", func() {
		backend.deny = true

		err := store.Put(ctx, "signatures/4_400.png", strings.NewReader("png-bytes"), "image/png")
		Expect(err).To(MatchError(ContainSubstring("failed to upload to s3")))
	})
})
