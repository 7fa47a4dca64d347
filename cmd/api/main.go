package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/config"
	"github.com/noah-isme/teamchat-api/internal/database"
	"github.com/noah-isme/teamchat-api/internal/handler"
	"github.com/noah-isme/teamchat-api/internal/middleware"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/observability"
	"github.com/noah-isme/teamchat-api/internal/repository"
	"github.com/noah-isme/teamchat-api/internal/router"
	"github.com/noah-isme/teamchat-api/internal/service"
	"github.com/noah-isme/teamchat-api/pkg/audit"
	cloud "github.com/noah-isme/teamchat-api/pkg/cloudinary"
	"github.com/noah-isme/teamchat-api/pkg/objectstore"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled: workspace info cache and cross-node fan-out are off")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	auditPublisher := audit.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer auditPublisher.Close()
	logger.Info().Str("mode", audit.Mode(auditPublisher)).Msg("audit publisher ready")

	store, err := newObjectStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create object store")
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	cascadeRepo := repository.NewCascadeRepository(db)

	guard := service.NewAccessGuard(memberRepo)
	realtimeService := service.NewRealtimeService(redisClient, cfg.RealtimeChannel, natsConn, logger)
	events := service.NewEventEmitter(realtimeService, auditPublisher, logger)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, validate, logger)
	workspaceService := service.NewWorkspaceService(workspaceRepo, memberRepo, cascadeRepo, guard, events, redisClient, cfg.WorkspaceInfoTTL, validate, logger)
	memberService := service.NewMemberService(memberRepo, userRepo, cascadeRepo, guard, events, validate, logger)
	channelService := service.NewChannelService(channelRepo, cascadeRepo, guard, events, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, memberRepo, guard, events, validate, logger)
	messageService := service.NewMessageService(service.MessageDependencies{
		Messages:      messageRepo,
		Reactions:     reactionRepo,
		Members:       memberRepo,
		Users:         userRepo,
		Channels:      channelRepo,
		Conversations: conversationRepo,
		Cascade:       cascadeRepo,
		Guard:         guard,
		Resolver:      store,
		Events:        events,
		Validator:     validate,
		PageSize:      cfg.MessagePageSize,
	}, logger)
	reactionService := service.NewReactionService(reactionRepo, messageRepo, conversationRepo, guard, events, validate, logger)
	uploadService := service.NewUploadService(store, uploadRepo, cfg.UploadMaxSizeMB, cfg.UploadURLTTL, logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	realtimeService.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		WorkspaceHandler:    handler.NewWorkspaceHandler(workspaceService, logger),
		MemberHandler:       handler.NewMemberHandler(memberService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		MessageHandler:      handler.NewMessageHandler(messageService, reactionService, logger),
		UploadHandler:       handler.NewUploadHandler(uploadService, logger),
		RealtimeHandler:     handler.NewRealtimeHandler(realtimeService, guard, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		SignInLimiter:       middleware.RateLimit("sign-in", 10, time.Minute),
		MessageLimiter:      middleware.RateLimit("messages", 60, time.Minute),
		HealthProbes:        healthProbes(db, redisClient),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancelRoot, logger)
}

func newObjectStore(cfg config.Config, logger zerolog.Logger) (service.ObjectStore, error) {
	if cfg.StorageProvider == "cloudinary" {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}

	store, err := objectstore.NewMinio(objectstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return probes
}

func waitForShutdown(app *fiber.App, cancelRoot context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
