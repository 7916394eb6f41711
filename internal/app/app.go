package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/cache"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/config"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/delivery/httpd"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/middleware"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/integration"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	db        *sql.DB
	redis     *redis.Client
	publisher integration.EventPublisher
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	minioRepo, err := repository.NewMinIORepository(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.Storage.BucketName,
		cfg.Storage.Region,
		cfg.MinIO.UseSSL,
		cfg.MinIO.Timeout,
		log,
	)
	if err != nil {
		return nil, err
	}

	auth, err := authMiddleware(ctx, cfg.Auth, log)
	if err != nil {
		return nil, err
	}

	caseRepo := repository.NewCaseRepository(db, log)
	fileRepo := repository.NewFileRepository(db, log)
	pg := repository.NewPostgresRepository(db, log)

	checks := []httpd.ReadinessCheck{
		{Name: "database", Check: pg.Ping},
		{Name: "storage", Check: minioRepo.Ping},
	}

	// Без Redis кэш статистики работает как no-op
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		checks = append(checks, httpd.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}
	statsCache := cache.NewStatsCache(redisClient, cfg.Cache.StatsTTL, log)
	urlCache := cache.NewURLCache(cfg.Cache.URLCacheCap, cfg.Upload.MaxURLExpiry/2)

	publisher := integration.NewNoopPublisher()
	if cfg.RabbitMQ.Enabled {
		publisher, err = integration.NewRabbitMQClient(
			cfg.RabbitMQ.URL,
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.RoutingKey,
			cfg.RabbitMQ.Queue,
			log,
		)
		if err != nil {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			return nil, err
		}
	}

	uploadConfig := service.UploadConfig{
		AllowedTypes:     cfg.Upload.AllowedTypes,
		MaxFileSize:      cfg.Upload.MaxFileSize,
		DefaultURLExpiry: cfg.Upload.DefaultURLExpiry,
		MinURLExpiry:     cfg.Upload.MinURLExpiry,
		MaxURLExpiry:     cfg.Upload.MaxURLExpiry,
		MaxBulkKeys:      cfg.Upload.MaxBulkKeys,
	}

	metadataService := service.NewMetadataService(caseRepo, fileRepo, publisher, statsCache, log)
	uploadService := service.NewUploadService(caseRepo, fileRepo, minioRepo, metadataService, log, uploadConfig)
	deleteService := service.NewDeleteService(fileRepo, minioRepo, metadataService, urlCache, log, cfg.Upload.MaxBulkKeys)
	caseService := service.NewCaseService(caseRepo, fileRepo, minioRepo, statsCache, urlCache, log)
	fileService := service.NewFileService(caseRepo, fileRepo, minioRepo, statsCache, urlCache, log, uploadConfig)

	handler := httpd.NewHandler(
		caseService,
		fileService,
		uploadService,
		deleteService,
		metadataService,
		checks,
		log,
	)

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.StructuredLogger(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(middleware.NewCORS(cfg.CORS))

	router.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(router, auth)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}, nil
}

// authMiddleware: при auth.enabled=false все запросы идут от локального администратора
func authMiddleware(ctx context.Context, cfg config.AuthConfig, log zerolog.Logger) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		log.Warn().Msg("Authentication is disabled, requests run as local admin")
		return middleware.Anonymous(middleware.Identity{
			ID:       "local",
			Username: "local",
			Role:     models.RoleAdmin,
		}), nil
	}

	jwtAuth, err := middleware.NewJWTAuth(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return jwtAuth.Middleware(), nil
}

func (a *App) Run() error {
	a.logger.Info().Msgf("Starting evidence service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down evidence service...")

	// Сначала сервер: запросы в полете еще пользуются БД и брокером
	err := a.server.Shutdown(ctx)

	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return err
}
