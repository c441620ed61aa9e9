package core

import (
	"context"
	"errors"
	"io"
)

var ErrFileNotFound = errors.New("file not found")

type (
	// FileStorage stores uploaded files under opaque keys.
	FileStorage interface {
		Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}

	// URLSigner is implemented by storages able to hand out temporary download URLs.
	URLSigner interface {
		SignedURL(ctx context.Context, key string) (string, error)
	}
)
