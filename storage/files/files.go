// Package filestore implements core.FileStorage on a local filesystem or on S3.
package filestore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/escuela/core"
)

// Open returns the storage selected by conf.Storage.Driver.
func Open(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Driver {
	case "s3":
		return NewS3(ctx, conf)
	case "", "local":
		if conf.TestMode {
			return NewLocal(afero.NewMemMapFs(), ""), nil
		}
		return NewLocal(afero.NewOsFs(), conf.Storage.LocalRoot), nil
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}
