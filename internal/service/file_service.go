package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"parley/internal/config"
	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultFileUploadDir       = "/tmp/parley/uploads"
	DefaultFileMaxUploadSizeMB = 25
	ThumbnailMaxSize           = 256
	ThumbnailWebPQuality       = 70
)

// UploadFileInput carries the fields for storing a file.
type UploadFileInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// FileService stores uploaded blobs on disk keyed by UUID and generates WebP
// thumbnails for images.
type FileService struct {
	fileRepo           repository.FileRepository
	uploadDir          string
	maxUploadSizeBytes int64
}

// NewFileService returns a new FileService.
func NewFileService(fileRepo repository.FileRepository, cfg *config.Config) *FileService {
	uploadDir := DefaultFileUploadDir
	maxUploadSizeMB := DefaultFileMaxUploadSizeMB

	if cfg != nil {
		if cfg.FileUploadDir != "" {
			uploadDir = cfg.FileUploadDir
		}
		if cfg.FileMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.FileMaxUploadSizeMB
		}
	}

	return &FileService{
		fileRepo:           fileRepo,
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Upload validates and stores the file, returning its metadata row. Images
// additionally get a WebP thumbnail stored as a sibling file row.
func (s *FileService) Upload(ctx context.Context, in UploadFileInput) (*models.File, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("no file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("file too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(in.Content)
	}

	name := filepath.Base(strings.TrimSpace(in.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}

	file := &models.File{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(in.Content)),
		UploaderID:  in.UserID,
	}

	if err := writeBlob(s.blobPath(file.ID), in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	if strings.HasPrefix(contentType, "image/") {
		if thumbID, err := s.writeThumbnail(ctx, in); err == nil && thumbID != "" {
			file.ThumbnailID = &thumbID
		}
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		_ = os.Remove(s.blobPath(file.ID))
		return nil, err
	}

	observability.FileUploadsTotal.WithLabelValues(contentTypeClass(contentType)).Inc()
	return file, nil
}

// writeThumbnail decodes, downscales and stores a WebP thumbnail. Returns an
// empty ID if the source cannot be decoded; a file message then simply ships
// without a thumbnail.
func (s *FileService) writeThumbnail(ctx context.Context, in UploadFileInput) (string, error) {
	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", err
	}

	resized := scaleToFit(decoded, ThumbnailMaxSize, ThumbnailMaxSize)
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resized, &webp.Options{Quality: ThumbnailWebPQuality}); err != nil {
		return "", err
	}

	thumb := &models.File{
		ID:          uuid.NewString(),
		Name:        "thumb_" + filepath.Base(in.Filename) + ".webp",
		ContentType: "image/webp",
		Size:        int64(buf.Len()),
		UploaderID:  in.UserID,
	}
	if err := writeBlob(s.blobPath(thumb.ID), buf.Bytes()); err != nil {
		return "", err
	}
	if err := s.fileRepo.Create(ctx, thumb); err != nil {
		_ = os.Remove(s.blobPath(thumb.ID))
		return "", err
	}
	return thumb.ID, nil
}

// Open returns the metadata and on-disk path for the blob.
func (s *FileService) Open(ctx context.Context, id string) (*models.File, string, error) {
	if uuid.Validate(id) != nil {
		return nil, "", models.NewValidationError("invalid file ID")
	}
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	path := s.blobPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, "", models.NewNotFoundError("file")
		}
		return nil, "", models.NewInternalError(err)
	}
	return file, path, nil
}

func (s *FileService) blobPath(id string) string {
	return filepath.Join(s.uploadDir, id)
}

func scaleToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func writeBlob(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func contentTypeClass(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	default:
		return "other"
	}
}
