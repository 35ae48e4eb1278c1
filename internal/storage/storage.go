// Package storage puts uploaded image files on local disk or Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"artvault/internal/config"
)

// ErrInvalidKey is returned for keys that are empty, absolute, or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore persists image bytes under a key and returns the public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// New returns the object store selected by STORAGE_BACKEND.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	case config.StorageLocal, "":
		return NewLocalStore(cfg.ImageUploadDir, cfg.MediaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// CleanKey validates a slash-separated object key.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Rendition file names under an upload's directory.
const (
	MasterJPEG = "master.jpg"
	MasterWebP = "master.webp"
)

// OwnerPrefix is the key prefix of every object uploaded by userID.
func OwnerPrefix(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10) + "/"
}

// OwnedBy reports whether key is a valid key under userID's prefix.
func OwnedBy(key string, userID uint) bool {
	cleaned, err := CleanKey(key)
	return err == nil && userID != 0 && strings.HasPrefix(cleaned, OwnerPrefix(userID))
}

// Renditions lists the objects stored for a master key: the key itself and,
// for a JPEG master, its WebP sibling.
func Renditions(key string) []string {
	out := []string{key}
	if dir, ok := strings.CutSuffix(key, "/"+MasterJPEG); ok {
		out = append(out, dir+"/"+MasterWebP)
	}
	return out
}

// LocalStore writes files under a root directory served at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Root is the directory the HTTP layer serves media from.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
