package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/storage"
)

const msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// ImageService turns client-supplied image values into stored URLs.
type ImageService struct {
	store    storage.Store
	maxBytes int64
}

func NewImageService(store storage.Store, maxBytes int64) *ImageService {
	return &ImageService{store: store, maxBytes: maxBytes}
}

// Resolve accepts a base64 data URI, which is decoded and saved under folder,
// or a URL that already points at an image, which is kept as is. A URL into
// our own store is only accepted when it equals current, the image the entity
// holds now. Failures are reported against field.
func (s *ImageService) Resolve(ctx context.Context, folder, field, value string, current *string) (string, error) {
	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, "data:") {
		data, mime, err := s.decode(field, value)
		if err != nil {
			return "", err
		}
		key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), mime.Extension())
		stored, err := s.store.Save(ctx, key, data, mime.String())
		if err != nil {
			return "", fmt.Errorf("store image: %w", err)
		}
		return stored, nil
	}

	if s.store.Owns(value) {
		if current != nil && *current == value {
			return value, nil
		}
		return "", apperror.ValidationFailed(field, msgInvalidImage)
	}
	if u, err := url.Parse(value); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return value, nil
	}
	return "", apperror.ValidationFailed(field, msgInvalidImage)
}

func (s *ImageService) decode(field, value string) ([]byte, *mimetype.MIME, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !ok || !strings.HasPrefix(header, "image/") || !strings.HasSuffix(header, ";base64") {
		return nil, nil, apperror.ValidationFailed(field, msgInvalidImage)
	}

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes+2 {
		return nil, nil, s.tooLarge(field)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil || len(data) == 0 {
		return nil, nil, apperror.ValidationFailed(field, msgInvalidImage)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, nil, s.tooLarge(field)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, nil, apperror.ValidationFailed(field, msgInvalidImage)
	}
	return data, mime, nil
}

func (s *ImageService) tooLarge(field string) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("Image is too large. The limit is %d bytes.", s.maxBytes))
}

// Discard removes an image we stored. Foreign URLs are ignored and delete
// errors are logged, not returned.
func (s *ImageService) Discard(ctx context.Context, image *string) {
	if image == nil || !s.store.Owns(*image) {
		return
	}
	if err := s.store.Delete(ctx, *image); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("image", *image).Msg("failed to delete image")
	}
}
