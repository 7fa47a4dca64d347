package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/pkg/objectstore"
)

const uploadEndpoint = "https://api.cloudinary.com/v1_1/%s/image/upload"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores message images on Cloudinary. Storage ids are public ids
// including the configured folder.
type Service struct {
	client    *cloudinary.Cloudinary
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	now       func() time.Time
	logger    zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &Service{
		client:    cld,
		cloudName: cfg.CloudName,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		folder:    strings.Trim(cfg.Folder, "/"),
		now:       time.Now,
		logger:    logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// NewKey returns a fresh public id inside the configured folder.
func (s *Service) NewKey() string {
	return objectstore.NewObjectKey(s.folder)
}

// PresignUpload returns a signed multipart form the client posts the image
// to. Cloudinary signatures carry a timestamp and expire server-side, so ttl
// is informational only.
func (s *Service) PresignUpload(_ context.Context, key string, _ time.Duration) (objectstore.PresignedUpload, error) {
	folder, publicID := splitKey(key)

	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(s.now().Unix(), 10))
	params.Set("public_id", publicID)
	if folder != "" {
		params.Set("folder", folder)
	}

	signature, err := api.SignParameters(params, s.apiSecret)
	if err != nil {
		return objectstore.PresignedUpload{}, fmt.Errorf("sign upload: %w", err)
	}

	fields := map[string]string{
		"api_key":   s.apiKey,
		"signature": signature,
	}
	for field := range params {
		fields[field] = params.Get(field)
	}

	return objectstore.PresignedUpload{
		URL:    fmt.Sprintf(uploadEndpoint, s.cloudName),
		Method: "POST",
		Fields: fields,
	}, nil
}

// Put uploads the content under key.
func (s *Service) Put(ctx context.Context, key string, reader io.Reader, _ int64, _ string) error {
	folder, publicID := splitKey(key)

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")
	return nil
}

// URL returns the delivery URL of key.
func (s *Service) URL(_ context.Context, key string) (string, error) {
	image, err := s.client.Image(key)
	if err != nil {
		return "", fmt.Errorf("build image url: %w", err)
	}
	return image.String()
}

func splitKey(key string) (string, string) {
	dir, file := path.Split(strings.Trim(key, "/"))
	return strings.Trim(dir, "/"), file
}
