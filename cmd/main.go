/*
Package main runs the relay.

It loads configuration, initializes logging, restores the last snapshot into the
chat manager, serves HTTP and websockets, optionally advertises itself over
mDNS, and shuts everything down cleanly on SIGINT or SIGTERM, taking a final
snapshot on the way out.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/discovery"
	"relaychat/internal/app/snapshot"
	"relaychat/internal/app/storage"
	"relaychat/internal/configs"
	"relaychat/internal/handler"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/credential"
	"relaychat/internal/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.LogLevel, cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("snapshot_backend", cfg.SnapshotBackend).
		Dur("snapshot_interval", cfg.SnapshotInterval).
		Str("upload_backend", cfg.UploadBackend).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher, err := credential.New(cfg.CredentialMode)
	if err != nil {
		logx.Fatal(err, "Invalid credential mode")
	}

	backend, err := snapshot.Open(ctx, snapshot.Config{
		Kind:        cfg.SnapshotBackend,
		Path:        cfg.SnapshotPath,
		DatabaseDSN: cfg.DatabaseDSN,
	})
	if err != nil {
		logx.Fatal(err, "Failed to open snapshot backend", "backend", cfg.SnapshotBackend)
	}

	tokens := jwt.NewIssuer(cfg.JWTSecret, jwt.SessionExpiration)

	manager := chat.NewManager(chat.Options{
		Hasher:                 hasher,
		Tokens:                 tokens,
		BroadcastOnRegister:    cfg.BroadcastOnRegister,
		BroadcastAvatarUpdates: cfg.BroadcastAvatarUpdates,
		Backend:                backend,
		SnapshotInterval:       cfg.SnapshotInterval,
	})
	manager.Start(ctx)

	storageService, err := storage.NewStorageService(ctx, storage.ServiceConfig{
		Kind:              cfg.UploadBackend,
		LocalDir:          cfg.UploadDir,
		LocalURLPrefix:    handler.UploadsPath,
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize upload storage", "backend", cfg.UploadBackend)
	}

	deps := &handler.AppDeps{
		Manager:        manager,
		Config:         cfg,
		StorageService: storageService,
		Tokens:         tokens,
	}
	if cfg.UploadBackend == storage.KindLocal {
		deps.UploadDir = cfg.UploadDir
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Relay starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	var announcer *discovery.Announcer
	if cfg.MDNSEnabled {
		announcer, err = discovery.Announce(discovery.Config{
			Instance:      cfg.MDNSInstance,
			Port:          cfg.Port,
			WebSocketPath: "/ws",
			UploadPath:    "/upload",
		})
		if err != nil {
			logx.Error(err, "mDNS announcement failed, continuing without LAN discovery")
		} else {
			logx.Info("Advertising relay over mDNS", "instance", cfg.MDNSInstance, "service", discovery.DefaultService)
		}
	}

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	announcer.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown(shutdownCtx)

	logx.Info("Server gracefully stopped.")
}
