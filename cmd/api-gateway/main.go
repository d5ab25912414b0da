package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/handler"
	"github.com/noah-isme/docunet-api/internal/middleware"
	"github.com/noah-isme/docunet-api/internal/repository"
	"github.com/noah-isme/docunet-api/internal/service"
	"github.com/noah-isme/docunet-api/pkg/cache"
	"github.com/noah-isme/docunet-api/pkg/config"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	"github.com/noah-isme/docunet-api/pkg/database"
	"github.com/noah-isme/docunet-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docunet-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docunet-api/pkg/middleware/requestid"
	"github.com/noah-isme/docunet-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	key, err := cfg.Crypto.Key()
	if err != nil {
		logr.Sugar().Fatalw("encryption key invalid", "error", err)
	}
	box, err := cryptobox.New(key)
	if err != nil {
		logr.Sugar().Fatalw("encryption key invalid", "error", err)
	}

	fileStore, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("storage init failed", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}

	// Redis caches OCR scan results; ingest degrades gracefully when the
	// cache is unavailable.
	var scanCache service.ScanCache
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, scan results will not be cached")
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		scanCache = cacheRepo
	}

	metrics := service.NewMetricsService()

	documentRepo := repository.NewDocumentRepository(db, metrics)
	propertyRepo := repository.NewPropertyDocumentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	dumpRepo := repository.NewDumpRepository(db)

	classifier := service.NewClassifier()
	matcher := service.NewNameMatcher()
	ocrClient := service.NewOCRClient(cfg.OCR.Endpoint, cfg.OCR.Timeout)
	converter := service.NewPDFConverter(cfg.Convert.Binary, cfg.Convert.OutputDir, cfg.Convert.Timeout)
	indexer := service.NewIndexer(documentRepo, propertyRepo, teacherRepo, categoryRepo)

	ingestService := service.NewIngestService(
		documentRepo, propertyRepo, teacherRepo, categoryRepo,
		fileStore, box, classifier, matcher,
		ocrClient, converter, scanCache, metrics, logr,
		service.IngestConfig{
			DocumentsDir: cfg.Storage.DocumentsDir,
			PreviewsDir:  cfg.Storage.PreviewsDir,
			OCRCacheTTL:  cfg.OCR.CacheTTL,
		},
	)
	documentService := service.NewDocumentService(documentRepo, propertyRepo, fileStore, box, logr)
	directoryService := service.NewDirectoryService(teacherRepo, categoryRepo, logr)

	backupSigner := storage.NewSignedURLSigner(cfg.Backups.SignedURLSecret, cfg.Backups.SignedURLTTL)
	backupService := service.NewBackupService(dumpRepo, indexer, fileStore, box, backupSigner, logr, service.BackupConfig{
		StorageDir:   cfg.Backups.StorageDir,
		APIPrefix:    cfg.APIPrefix,
		SignedURLTTL: cfg.Backups.SignedURLTTL,
	})
	restoreService := service.NewRestoreService(dumpRepo, indexer, fileStore, box, logr)

	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(
		documentRepo, propertyRepo, teacherRepo, categoryRepo,
		exportStore, exportSigner,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.ResultTTL},
		logr, nil, nil,
	)

	documentHandler := handler.NewDocumentHandler(ingestService, documentService)
	backupHandler := handler.NewBackupHandler(backupService, restoreService, metrics)
	exportHandler := handler.NewExportHandler(exportService)
	teacherHandler := handler.NewTeacherHandler(directoryService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/status", metricsHandler.Status)

		api.POST("/documents", documentHandler.Upload)
		api.GET("/documents", documentHandler.List)
		api.POST("/documents/scan", documentHandler.Scan)
		api.GET("/documents/property", documentHandler.ListProperty)
		api.GET("/documents/property/:id/download", documentHandler.DownloadProperty)
		api.DELETE("/documents/property/:id", documentHandler.DeleteProperty)
		api.GET("/documents/:id", documentHandler.Get)
		api.GET("/documents/:id/download", documentHandler.Download)
		api.GET("/documents/:id/preview", documentHandler.Preview)
		api.DELETE("/documents/:id", documentHandler.Delete)

		api.GET("/teachers", teacherHandler.List)
		api.GET("/teachers/:id", teacherHandler.Get)
		api.GET("/categories", teacherHandler.Categories)

		api.POST("/backups", backupHandler.Run)
		api.GET("/backups", backupHandler.List)
		api.GET("/backups/download/:token", backupHandler.Download)
		api.POST("/backups/restore", backupHandler.Restore)

		api.POST("/exports", exportHandler.Generate)
		api.GET("/exports/:token", exportHandler.Download)
	}

	if cfg.Backups.Interval > 0 {
		go runSnapshotTicker(backupService, metrics, cfg.Backups.Interval, logr)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// runSnapshotTicker builds a snapshot on a fixed interval. Each run is
// synchronous and self-contained; a failed run is logged and the next one
// proceeds normally.
func runSnapshotTicker(backups *service.BackupService, metrics *service.MetricsService, interval time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := backups.BuildSnapshot(context.Background()); err != nil {
			logr.Sugar().Errorw("scheduled snapshot failed", "error", err)
			continue
		}
		metrics.ObserveSnapshot()
	}
}
