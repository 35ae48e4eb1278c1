package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads images to a Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(url, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: strings.Trim(folder, "/")}, nil
}

// publicID maps an object key to a Cloudinary public ID. The extension is
// folded into the ID so the JPEG and WebP renditions of one image stay apart.
func publicID(key string) string {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	if ext == "" {
		return base
	}
	return base + "-" + strings.TrimPrefix(ext, ".")
}

func (s *CloudinaryStore) fullID(key string) string {
	if s.folder == "" {
		return publicID(key)
	}
	return s.folder + "/" + publicID(key)
}

func (s *CloudinaryStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   s.folder,
		PublicID: publicID(key),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: s.fullID(key)})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return errors.New("cloudinary destroy: " + res.Error.Message)
	}
	return nil
}
