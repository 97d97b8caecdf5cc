package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/blob"
	"medivault.org/internal/document"
	"medivault.org/internal/filecrypt"
	"medivault.org/internal/httpapi"
	"medivault.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("MEDIVAULT_COMMIT"))

	// Master key: fatal at startup, never per-request.
	key, err := filecrypt.ParseMasterKey(os.Getenv("MEDIVAULT_ENCRYPTION_KEY"))
	if err != nil {
		log.Fatalf("encryption key: %v", err)
	}
	engine, err := filecrypt.New(key)
	if err != nil {
		log.Fatalf("encryption engine: %v", err)
	}

	dsn := os.Getenv("MEDIVAULT_PG_DSN")
	if dsn == "" {
		log.Fatal("MEDIVAULT_PG_DSN is required")
	}
	store, err := document.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db := store.DB()

	blobDir := os.Getenv("MEDIVAULT_BLOB_DIR")
	if blobDir == "" {
		blobDir = "./data/blobs"
	}
	blobs, err := blob.NewFSStore(blobDir)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	recorder, err := audit.NewRecorder(audit.NewPGStore(db))
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}

	authSvc, err := auth.NewService(auth.NewPGProfiles(db))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	docs, err := document.NewService(store, blobs, engine, recorder)
	if err != nil {
		log.Fatalf("document service: %v", err)
	}

	api := httpapi.New(authSvc, docs, recorder, httpapi.ReadyProbe{DB: db}, version)

	addr := os.Getenv("MEDIVAULT_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting medivault-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
