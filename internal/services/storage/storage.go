// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package storage keeps uploaded images in a local directory or an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store persists binary objects under string keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.Dir, "/uploads")
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewKey returns a unique key of the form <prefix>/<ownerID>/<yyyy>/<mm>/<uuid><ext>.
func NewKey(prefix string, ownerID int64, ext string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("%s/%d/%04d/%02d/%s%s", prefix, ownerID, d.Year(), int(d.Month()), uuid.New(), ext)
}
