package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abdirazakf/file-uploader/internal/api"
	"github.com/Abdirazakf/file-uploader/internal/api/handlers"
	"github.com/Abdirazakf/file-uploader/internal/auth"
	"github.com/Abdirazakf/file-uploader/internal/blob"
	"github.com/Abdirazakf/file-uploader/internal/configuration"
	"github.com/Abdirazakf/file-uploader/internal/events"
	"github.com/Abdirazakf/file-uploader/internal/files"
	"github.com/Abdirazakf/file-uploader/internal/foldertree"
	"github.com/Abdirazakf/file-uploader/internal/scan"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

func main() {
	cfg := configuration.Load()

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	blobs, err := blob.NewMinio(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName,
		cfg.MinIO.PublicURL,
		cfg.MinIO.UseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	// Optional collaborators: the service runs without NATS, ClamAV or OIDC.
	var bus *events.Service
	if cfg.NATSURL != "" {
		bus, err = events.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: NATS unavailable, events disabled: %v", err)
		}
	}

	var scanner files.Scanner
	if cfg.CLAMAVURL != "" {
		scanner = scan.NewClamScanner(cfg.CLAMAVURL, blobs, store)
	}

	verifier, err := auth.InitOIDC(cfg.OIDCIssuer)
	if err != nil {
		log.Fatalf("Failed to initialize OIDC: %v", err)
	}

	tree := foldertree.New(store, blobs, bus)
	fileMgr := files.New(store, blobs, tree, bus, scanner)

	if bus != nil {
		if _, err := bus.ConsumeUserDeleted(store, blobs); err != nil {
			log.Printf("Warning: users.deleted consumer not started: %v", err)
		}
	}

	h := handlers.New(store, tree, fileMgr, cfg.Upload.MaxSizeMB<<20)
	r := api.NewRouter(cfg, h, verifier)

	setupGracefulShutdown(store, bus)

	log.Printf("Server starting on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupGracefulShutdown(store storage.Store, bus *events.Service) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down gracefully...")
		bus.Close()
		if err := store.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
		os.Exit(0)
	}()
}
