// Package filestore keeps attachment bytes on local disk, keyed by an
// opaque name the metadata row references.
package filestore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Store interface {
	Save(key string, src io.Reader) (int64, error)
	Open(key string) (io.ReadSeekCloser, error)
	Remove(key string) error
}

type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

// CleanKey rejects keys that could escape the store directory.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", errors.New("invalid file key")
	}
	return key, nil
}

func (d *Disk) path(key string) string { return filepath.Join(d.dir, key) }

func (d *Disk) Save(key string, src io.Reader) (int64, error) {
	key, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	dst, err := os.OpenFile(d.path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(d.path(key))
		return 0, err
	}
	return n, nil
}

func (d *Disk) Open(key string) (io.ReadSeekCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(d.path(key))
}

func (d *Disk) Remove(key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	return os.Remove(d.path(key))
}
