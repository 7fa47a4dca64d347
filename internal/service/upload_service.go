package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/observability"
	"github.com/noah-isme/teamchat-api/internal/repository"
	"github.com/noah-isme/teamchat-api/pkg/objectstore"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
}

// ObjectStore abstracts the bucket message images live in.
type ObjectStore interface {
	ObjectURLResolver
	NewKey() string
	PresignUpload(ctx context.Context, key string, ttl time.Duration) (objectstore.PresignedUpload, error)
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// UploadService hands out direct upload targets and accepts server-side uploads.
type UploadService interface {
	GenerateUploadURL(ctx context.Context, userID uint) (dto.UploadURLResponse, error)
	Upload(ctx context.Context, userID uint, file *multipart.FileHeader) (dto.UploadResponse, error)
}

type uploadService struct {
	store   ObjectStore
	repo    repository.UploadRepository
	logger  zerolog.Logger
	maxSize int64
	urlTTL  time.Duration
	tracer  trace.Tracer
	now     func() time.Time
}

// NewUploadService constructs an upload service.
func NewUploadService(store ObjectStore, repo repository.UploadRepository, maxSizeMB int, urlTTL time.Duration, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &uploadService{
		store:   store,
		repo:    repo,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		urlTTL:  urlTTL,
		tracer:  otel.Tracer("github.com/noah-isme/teamchat-api/internal/service/upload"),
		now:     time.Now,
	}
}

// GenerateUploadURL returns a short-lived target the client uploads an image
// to. The storage id is what the client later attaches to a message.
func (s *uploadService) GenerateUploadURL(ctx context.Context, userID uint) (dto.UploadURLResponse, error) {
	if userID == 0 {
		return dto.UploadURLResponse{}, ErrUnauthorized
	}

	ctx, span := s.tracer.Start(ctx, "upload.presign")
	defer span.End()

	key := s.store.NewKey()
	target, err := s.store.PresignUpload(ctx, key, s.urlTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return dto.UploadURLResponse{}, err
	}

	return dto.UploadURLResponse{
		UploadURL: target.URL,
		Method:    target.Method,
		Fields:    target.Fields,
		StorageID: key,
		ExpiresAt: s.now().UTC().Add(s.urlTTL),
	}, nil
}

func (s *uploadService) Upload(ctx context.Context, userID uint, file *multipart.FileHeader) (dto.UploadResponse, error) {
	if userID == 0 {
		return dto.UploadResponse{}, ErrUnauthorized
	}

	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize), attribute.Int64("upload.user_id", int64(userID)))
	if file != nil {
		span.SetAttributes(
			attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
			attribute.Int64("upload.request_size", file.Size),
		)
	} else {
		span.SetAttributes(attribute.Bool("upload.file_present", false))
	}

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := fmt.Errorf("%w: file is required", ErrInvalidInput)
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, err
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := strings.ToLower(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if _, ok := allowedImageTypes[fileType]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	sanitizedName := sanitizeFileName(file.Filename, detected.Extension())
	key := s.store.NewKey()
	span.SetAttributes(
		attribute.String("upload.sanitized_name", sanitizedName),
		attribute.String("upload.storage_id", key),
		attribute.Int64("upload.size_bytes", int64(buf.Len())),
	)

	if err := s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), fileType); err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadResponse{}, err
	}

	record := models.UploadRecord{
		UserID:    userID,
		StorageID: key,
		FileName:  sanitizedName,
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.UploadResponse{}, err
	}

	url, err := s.store.URL(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("storage_id", key).Msg("failed to resolve uploaded image url")
	}

	observability.UploadRequests().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")

	return dto.UploadResponse{
		StorageID: key,
		URL:       url,
		SizeBytes: record.SizeBytes,
		MimeType:  record.MimeType,
		Checksum:  record.Checksum,
		FileName:  record.FileName,
	}, nil
}

func sanitizeFileName(name, detectedExt string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if detectedExt != "" {
		ext = detectedExt
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
