package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/ids"
	"github.com/vblendo1/koisando-green-alien/internal/media/sniffer"
	"github.com/vblendo1/koisando-green-alien/internal/media/svg"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/storage"
)

// ObjectPutter stores an object and returns the URL it is served from.
type ObjectPutter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

var errUploadsDisabled = errors.New("object storage is not configured")

type ImageKind string

const (
	ImageCover     ImageKind = "cover"
	ImageThumbnail ImageKind = "thumbnail"
)

type UploadInput struct {
	File   multipart.File
	Header *multipart.FileHeader
}

// MediaService accepts product covers and thumbnails, checks the bytes are
// really an image, and writes the public URL onto the entity.
type MediaService struct {
	admin    *AdminService
	store    ObjectPutter
	maxBytes int64
	log      zerolog.Logger
}

func NewMediaService(admin *AdminService, store ObjectPutter, maxBytes int64, log zerolog.Logger) *MediaService {
	return &MediaService{
		admin:    admin,
		store:    store,
		maxBytes: maxBytes,
		log:      log,
	}
}

func (s *MediaService) UploadProductImage(ctx context.Context, actor models.Actor, productID string, kind ImageKind, input UploadInput) (models.Product, error) {
	const op = "media.upload_product_image"
	if err := requireAdmin(op, actor); err != nil {
		return models.Product{}, err
	}
	if kind != ImageCover && kind != ImageThumbnail {
		return models.Product{}, apperr.Validation(op, "kind", "kind must be cover or thumbnail")
	}
	if _, err := s.admin.products.GetByID(ctx, productID); err != nil {
		return models.Product{}, err
	}

	url, err := s.save(ctx, op, storage.ProductPrefix(productID)+string(kind), input)
	if err != nil {
		return models.Product{}, err
	}
	if kind == ImageCover {
		return s.admin.SetProductImages(ctx, actor, productID, &url, nil)
	}
	return s.admin.SetProductImages(ctx, actor, productID, nil, &url)
}

func (s *MediaService) UploadLessonThumbnail(ctx context.Context, actor models.Actor, lessonID string, input UploadInput) (models.Lesson, error) {
	const op = "media.upload_lesson_thumbnail"
	if err := requireAdmin(op, actor); err != nil {
		return models.Lesson{}, err
	}
	if _, err := s.admin.lessons.GetByID(ctx, lessonID); err != nil {
		return models.Lesson{}, err
	}

	url, err := s.save(ctx, op, storage.LessonPrefix(lessonID)+string(ImageThumbnail), input)
	if err != nil {
		return models.Lesson{}, err
	}
	return s.admin.SetLessonThumbnail(ctx, actor, lessonID, url)
}

func (s *MediaService) save(ctx context.Context, op, keyBase string, input UploadInput) (string, error) {
	if s.store == nil {
		return "", apperr.Transient(op, errUploadsDisabled)
	}
	if input.File == nil || input.Header == nil {
		return "", apperr.Validation(op, "file", "file is required")
	}
	if s.maxBytes > 0 && input.Header.Size > s.maxBytes {
		return "", apperr.Validation(op, "file", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(input.File, s.limit()+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", apperr.Validation(op, "file", "file is empty")
	}
	if int64(len(data)) > s.limit() {
		return "", apperr.Validation(op, "file", fmt.Sprintf("file exceeds %d bytes", s.limit()))
	}

	head := data
	if len(head) > sniffer.HeadSize {
		head = head[:sniffer.HeadSize]
	}
	result, err := sniffer.DetectHead(head)
	if errors.Is(err, sniffer.ErrUnknownType) {
		return "", apperr.Validation(op, "file", "unsupported image type")
	}
	if err != nil {
		return "", fmt.Errorf("detect type: %w", err)
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header))
	if declared != "" && declared != "application/octet-stream" && declared != result.MIME {
		return "", apperr.Validation(op, "file", fmt.Sprintf("content type mismatch: declared %s, actual %s", declared, result.MIME))
	}

	if result.Type == sniffer.TypeSVG {
		clean, err := svg.Sanitize(data)
		if err != nil {
			return "", apperr.Validation(op, "file", "invalid svg document")
		}
		data = clean
	}

	key := fmt.Sprintf("%s-%s.%s", keyBase, ids.New(), result.Extension())
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), result.MIME)
	if err != nil {
		return "", apperr.Transient(op, err)
	}
	s.log.Info().Str("key", key).Int("bytes", len(data)).Msg("media stored")
	return url, nil
}

func (s *MediaService) limit() int64 {
	if s.maxBytes > 0 {
		return s.maxBytes
	}
	return 10 << 20
}
