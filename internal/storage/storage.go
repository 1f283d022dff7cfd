// Package storage stores uploaded files such as signatures.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// FileStorage persists opaque blobs under a key.
type FileStorage interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Driver string // fs or s3

	BasePath string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (FileStorage, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFilesystem(cfg.BasePath)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
