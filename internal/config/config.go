package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName        string
	AppEnv         string
	AppPort        string
	AllowOrigins   string
	AccessLog      bool
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	AMQPURL        string
	AMQPExchange   string
	JWTSecret      string
	JWTTTL         time.Duration

	StorageProvider string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioRegion     string
	MinioUseSSL     bool

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	UploadURLTTL     time.Duration
	UploadMaxSizeMB  int
	MessagePageSize  int
	RealtimeChannel  string
	WorkspaceInfoTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TEAMCHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Teamchat API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("http.access_log", true)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("amqp.exchange", "teamchat.audit")
	v.SetDefault("jwt.ttl", "72h")
	v.SetDefault("storage.provider", "minio")
	v.SetDefault("minio.bucket", "teamchat-uploads")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("cloudinary.folder", "teamchat/messages")
	v.SetDefault("upload.url_ttl", "15m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("messages.page_size", 20)
	v.SetDefault("realtime.channel", "teamchat")
	v.SetDefault("workspace.info_ttl", "1m")

	jwtTTL, err := parseDuration(v, "jwt.ttl", "72h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	uploadTTL, err := parseDuration(v, "upload.url_ttl", "15m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload url ttl: %w", err)
	}

	infoTTL, err := parseDuration(v, "workspace.info_ttl", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid workspace info ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AllowOrigins:           v.GetString("cors.allow_origins"),
		AccessLog:              v.GetBool("http.access_log"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		AMQPURL:                v.GetString("amqp.url"),
		AMQPExchange:           v.GetString("amqp.exchange"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 jwtTTL,
		StorageProvider:        strings.ToLower(v.GetString("storage.provider")),
		MinioEndpoint:          v.GetString("minio.endpoint"),
		MinioAccessKey:         v.GetString("minio.access_key"),
		MinioSecretKey:         v.GetString("minio.secret_key"),
		MinioBucket:            v.GetString("minio.bucket"),
		MinioRegion:            v.GetString("minio.region"),
		MinioUseSSL:            v.GetBool("minio.use_ssl"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadURLTTL:           uploadTTL,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		MessagePageSize:        v.GetInt("messages.page_size"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		WorkspaceInfoTTL:       infoTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.StorageProvider {
	case "minio", "cloudinary":
	default:
		return Config{}, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.MessagePageSize <= 0 || cfg.MessagePageSize > 100 {
		cfg.MessagePageSize = 20
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
