package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aruzhan/gostash/internal/auth"
	"github.com/aruzhan/gostash/internal/config"
	"github.com/aruzhan/gostash/internal/file"
	"github.com/aruzhan/gostash/internal/logger"
	"github.com/aruzhan/gostash/internal/server"
	"github.com/aruzhan/gostash/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	logg, err := logger.Init(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.RunMigrations(cfg.Postgres.DSN()); err != nil {
		logg.Fatal("run migrations", zap.Error(err))
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logg.Fatal("connect minio", zap.Error(err))
	}

	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		logg.Fatal("ensure bucket", zap.Error(err))
	}

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, cfg.Auth)

	fileRepo := file.NewRepository(dbPool)
	blobStore := file.NewMinIOStore(minioClient, cfg.MinIO.Bucket, cfg.MinIO.DownloadURLTTL)
	metadataCache := file.NewCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	fileService := file.NewService(fileRepo, blobStore, fileRepo, metadataCache, logg)

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		DB:          dbPool,
		ObjectStore: minioClient,
		AuthService: authService,
		FileService: fileService,
		Logger:      logg,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("GoStash API listening", zap.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
