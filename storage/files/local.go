package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/escuela/core"
)

// Local stores files under a root directory of an afero filesystem.
type Local struct {
	fs afero.Fs
}

func NewLocal(fs afero.Fs, root string) *Local {
	if root != "" {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &Local{fs: fs}
}

func cleanKey(key string) (string, error) {
	key = filepath.Clean("/" + key)
	if key == "/" || strings.Contains(key, "..") {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return key, nil
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err = s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	n, err := io.Copy(f, io.LimitReader(r, size+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n != size {
		err = errors.Errorf("expected %d bytes, got %d", size, n)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = s.fs.Remove(key)
		return errors.Wrap(err, "writing file")
	}
	return nil
}

func (s *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *Local) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err = s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
