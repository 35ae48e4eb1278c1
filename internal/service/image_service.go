package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"artvault/internal/config"
	"artvault/internal/featureflags"
	"artvault/internal/models"
	"artvault/internal/observability"
	"artvault/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	MaxImageWidth               = 1080
	JPEGQuality                 = 82
	WebPQuality                 = 70

	// FlagWebPVariants gates the WebP rendition per uploader.
	FlagWebPVariants = "webp_variants"
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// UploadedImage describes the stored renditions of an upload.
type UploadedImage struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	WebPKey string `json:"webp_key,omitempty"`
	WebPURL string `json:"webp_url,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type ImageService struct {
	objects            storage.ObjectStore
	flags              *featureflags.Manager
	maxUploadSizeBytes int64
}

func NewImageService(objects storage.ObjectStore, flags *featureflags.Manager, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &ImageService{
		objects:            objects,
		flags:              flags,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// MaxUploadBytes is the upload size limit.
func (s *ImageService) MaxUploadBytes() int64 { return s.maxUploadSizeBytes }

// Upload validates and normalizes an image, then stores a JPEG master and,
// when enabled for the uploader, a WebP rendition under a content hash key.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*UploadedImage, error) {
	switch {
	case in.UserID == 0:
		return nil, models.NewValidationError("Invalid user")
	case len(in.Content) == 0:
		return nil, models.NewValidationError("No file uploaded")
	case int64(len(in.Content)) > s.maxUploadSizeBytes:
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes>>20))
	}

	sniffed := mediaType(http.DetectContentType(in.Content))
	if _, ok := acceptedMedia[sniffed]; !ok {
		return nil, models.NewValidationError("Invalid image type")
	}
	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	actual, ok := decoderMedia[format]
	if !ok {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if declared := canonicalMedia(in.ContentType); strings.HasPrefix(declared, "image/") && declared != actual {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	master := resizeToWidth(decoded, MaxImageWidth)
	encodedJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("encode jpeg: %w", err))
	}

	dir := storage.OwnerPrefix(in.UserID) + contentKey(in.UserID, encodedJPG)
	bounds := master.Bounds()
	out := &UploadedImage{
		Key:    dir + "/" + storage.MasterJPEG,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	if out.URL, err = s.objects.Put(ctx, out.Key, "image/jpeg", encodedJPG); err != nil {
		return nil, models.NewUnavailableError("object storage", err)
	}
	observability.ImageUploads.WithLabelValues("jpeg").Inc()

	if s.flags.Enabled(FlagWebPVariants, in.UserID) {
		encodedWebP, err := encodeWebP(master, WebPQuality)
		if err != nil {
			s.discard(ctx, out.Key)
			return nil, models.NewInternalError(fmt.Errorf("encode webp: %w", err))
		}
		out.WebPKey = dir + "/" + storage.MasterWebP
		if out.WebPURL, err = s.objects.Put(ctx, out.WebPKey, "image/webp", encodedWebP); err != nil {
			s.discard(ctx, out.Key)
			return nil, models.NewUnavailableError("object storage", err)
		}
		observability.ImageUploads.WithLabelValues("webp").Inc()
	}
	return out, nil
}

func (s *ImageService) discard(ctx context.Context, key string) {
	_ = s.objects.Delete(context.WithoutCancel(ctx), key)
}

// resizeToWidth scales src down to maxWidth keeping the aspect ratio.
func resizeToWidth(src image.Image, maxWidth int) image.Image {
	area := src.Bounds()
	w, h := area.Dx(), area.Dy()
	if w <= 0 || h <= 0 || w <= maxWidth {
		return src
	}
	height := max(h*maxWidth/w, 1)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, area, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var out bytes.Buffer
	err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality})
	return out.Bytes(), err
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var out bytes.Buffer
	err := webp.Encode(&out, img, &webp.Options{Quality: float32(quality)})
	return out.Bytes(), err
}

// acceptedMedia lists the sniffed types worth decoding.
var acceptedMedia = map[string]struct{}{
	"image/jpeg": {}, "image/png": {}, "image/gif": {}, "image/webp": {},
}

// decoderMedia maps image.Decode format names to their media type.
var decoderMedia = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// mediaType strips parameters and case from a Content-Type value.
func mediaType(value string) string {
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		value = parsed
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// canonicalMedia is mediaType with the image/jpg alias folded into image/jpeg.
func canonicalMedia(value string) string {
	if mt := mediaType(value); mt != "image/jpg" {
		return mt
	}
	return "image/jpeg"
}

// contentKey names an upload by uploader and encoded bytes, so a repeated
// upload lands on the same object.
func contentKey(userID uint, content []byte) string {
	sum := sha256.New()
	_, _ = fmt.Fprintf(sum, "%d:", userID)
	sum.Write(content)
	return hex.EncodeToString(sum.Sum(nil))
}
