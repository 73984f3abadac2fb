package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"workflow-backend/internal/admin"
	"workflow-backend/internal/auth"
	"workflow-backend/internal/briefings"
	"workflow-backend/internal/cache"
	"workflow-backend/internal/captation"
	"workflow-backend/internal/config"
	"workflow-backend/internal/db"
	"workflow-backend/internal/metrics"
	"workflow-backend/internal/middleware"
	"workflow-backend/internal/notifications"
	"workflow-backend/internal/portfolio"
	"workflow-backend/internal/preview"
	"workflow-backend/internal/storage"
	"workflow-backend/internal/transport"
	"workflow-backend/internal/uploads"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		defer redisCache.Close()
		cacheStore = redisCache
	} else {
		logger.Warn("redis not configured, using in-process cache")
	}
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "workflow-backend",
		}
	}

	var notifier briefings.Notifier
	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.AgencyNotifyEmail, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		notifier = mailer
	}

	val := validation.New()
	appMetrics := metrics.New()

	adminRepo := admin.NewRepository(cols.Users)
	adminService := admin.NewService(adminRepo, jwtManager, admin.EnvAdmin{Username: cfg.AdminUser, Password: cfg.AdminPassword}, cfg.Timezone)
	adminHandler := admin.NewHandler(adminService, val, logger, cfg.CookieSecure)

	briefingsRepo := briefings.NewRepository(cols.Briefings)
	briefingsService := briefings.NewService(briefingsRepo, cfg.Timezone, notifier)
	briefingsHandler := briefings.NewHandler(briefingsService, val, logger)

	var uploadStore, publicStore *storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		storeCfg := storage.Config{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			ExpireDays: cfg.MinioExpireDays,
		}
		uploadStore, err = storage.NewObjectStore(storeCfg)
		if err == nil {
			storeCfg.Bucket = cfg.MinioPublicBucket
			publicStore, err = storage.NewObjectStore(storeCfg)
		}
		if err == nil {
			err = uploadStore.EnsureBucket(ctx)
		}
		if err == nil {
			err = publicStore.EnsureBucket(ctx)
		}
		if err != nil {
			logger.Error("object storage init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("object storage ready", slog.String("endpoint", cfg.MinioEndpoint), slog.String("bucket", cfg.MinioBucket))
	} else {
		logger.Info("object storage disabled, uploads unavailable")
	}

	var thumbnailer portfolio.Thumbnailer
	if cfg.ChromeEnabled && publicStore != nil {
		screenshotter := preview.NewScreenshotter(publicStore, cfg.ChromeRemoteURL, 45*time.Second, logger)
		defer screenshotter.Close()
		thumbnailer = screenshotter
		logger.Info("screenshot capture enabled")
	}

	portfolioRepo := portfolio.NewRepository(cols.Projects)
	portfolioService := portfolio.NewService(portfolioRepo, cacheStore, cacheTTL, cfg.Timezone, logger)
	portfolioHandler := portfolio.NewHandler(portfolioService, val, logger, thumbnailer)

	previewTimeout := time.Duration(cfg.PreviewTimeoutSec) * time.Second
	fetcher := preview.NewFetcher(previewTimeout, preview.RetryPolicy{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond}, preview.DefaultMaxBytes, logger)
	previewService := preview.NewService(fetcher, cacheStore, portfolioService, preview.Config{
		AllowedHosts: cfg.PreviewAllowedHosts,
		CacheTTL:     cacheTTL,
	}, logger).WithRecorder(appMetrics)
	previewHandler := preview.NewHandler(previewService, logger, 3*previewTimeout)

	captationRepo := captation.NewRepository(cols)
	resolver := captation.NewResolver(captationRepo, cfg.Timezone)
	detector := captation.NewDetector(captationRepo)
	importer := captation.NewImporter(resolver, detector, captationRepo, cfg.Timezone, logger).WithRecorder(appMetrics)
	jobs := captation.NewJobTracker(cacheStore, importer, captation.DefaultJobTTL, cfg.Timezone, logger)
	captationService := captation.NewService(captation.ServiceDeps{
		Refs:     captationRepo,
		Sites:    captationRepo,
		Resolver: resolver,
		Builder:  captation.NewPreviewBuilder(resolver, detector, logger),
		Jobs:     jobs,
		Limits:   captation.InputLimits{MaxBytes: cfg.ImportMaxBytes, MaxEntries: cfg.ImportMaxEntries},
		Defaults: captation.ImportOptions{BatchSize: cfg.ImportBatchSize, Workers: cfg.ImportWorkers},
		Location: cfg.Timezone,
	})
	captationHandler := captation.NewHandler(captationService, val, logger)

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	briefingsLimiter := middleware.NewRateLimiter(cfg.RateLimitBriefings, window)
	uploadsLimiter := middleware.NewRateLimiter(cfg.RateLimitUploads, window)
	previewLimiter := middleware.NewRateLimiter(cfg.RateLimitPreview, window)
	adminAuth := middleware.AdminAuth(cfg.AdminAPIKey, jwtManager)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(appMetrics.Middleware)
	r.Use(middleware.CORS(cfg.FrontendOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			transport.WriteError(w, http.StatusServiceUnavailable, "mongo unavailable", nil)
			return
		}
		transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", appMetrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.With(briefingsLimiter.Middleware).Post("/briefings", briefingsHandler.Create)
		api.Get("/portfolio", portfolioHandler.PublicList)
		api.Get("/portfolio/{slug}", portfolioHandler.PublicGetBySlug)
		api.With(previewLimiter.Middleware).Get("/preview", previewHandler.Get)

		if uploadStore != nil {
			uploadsService := uploads.NewService(uploadStore, uploads.NewRepository(cols.UploadSessions), cfg.UploadMaxBytes, cfg.Timezone, logger)
			uploadsHandler := uploads.NewHandler(uploadsService, val, logger)
			api.Route("/uploads", func(up chi.Router) {
				up.Use(uploadsLimiter.Middleware)
				up.Post("/", uploadsHandler.Upload)
				up.Post("/sessions", uploadsHandler.StartSession)
				up.Put("/sessions/{id}/parts/{n}", uploadsHandler.PutPart)
				up.Post("/sessions/{id}/complete", uploadsHandler.Complete)
			})
		}

		api.Route("/admin", func(adm chi.Router) {
			adm.Post("/login", adminHandler.Login)
			adm.Post("/refresh", adminHandler.Refresh)
			adm.Post("/logout", adminHandler.Logout)

			adm.Group(func(protected chi.Router) {
				protected.Use(adminAuth)
				protected.Post("/users", adminHandler.CreateUser)

				protected.Get("/briefings", briefingsHandler.AdminList)
				protected.Get("/briefings/{id}", briefingsHandler.AdminGetByID)
				protected.Patch("/briefings/{id}/status", briefingsHandler.AdminUpdateStatus)

				protected.Get("/portfolio", portfolioHandler.AdminList)
				protected.Post("/portfolio", portfolioHandler.AdminCreate)
				protected.Put("/portfolio/{id}", portfolioHandler.AdminUpdate)
				protected.Delete("/portfolio/{id}", portfolioHandler.AdminDelete)
				protected.Post("/portfolio/{id}/thumbnail", portfolioHandler.AdminCaptureThumbnail)

				protected.Route("/captation", func(c chi.Router) {
					c.Post("/preview", captationHandler.Preview)
					c.Post("/imports", captationHandler.StartImport)
					c.Get("/imports/{id}", captationHandler.GetImport)
					c.Delete("/imports/{id}", captationHandler.CancelImport)
					c.Get("/sites", captationHandler.ListSites)
					c.Get("/sites/{id}", captationHandler.GetSite)
					c.Patch("/sites/{id}", captationHandler.UpdateSite)
					c.Patch("/sites/{id}/status", captationHandler.UpdateStatus)
					c.Get("/categories", captationHandler.ListCategories)
					c.Get("/states", captationHandler.ListStates)
					c.Get("/states/{id}/cities", captationHandler.ListCities)
				})
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Error("import jobs shutdown error", slog.String("error", err.Error()))
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
