package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/config"
	"github.com/issmimic/iss-telemetry/pkg/feed"
	"github.com/issmimic/iss-telemetry/pkg/ingest"
	"github.com/issmimic/iss-telemetry/pkg/query"
	"github.com/issmimic/iss-telemetry/pkg/server"
)

func main() {
	log.Println("🚀 Starting ISS telemetry server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Catalog load is never fatal: a missing or malformed descriptor file
	// falls back to the built-in parameter set.
	cat := catalog.Load(cfg.CatalogPath)
	log.Printf("📖 Catalog ready: %d parameters", cat.Len())

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Println("✅ Retention store initialized")

	// Feed ingest runs independently of HTTP handling; the client reconnects
	// on its own and never blocks request serving.
	adapter := ingest.New(store, cat)
	sub, err := adapter.Start(feed.NewClient(cfg.FeedURL))
	if err != nil {
		log.Fatalf("❌ Failed to subscribe to telemetry feed: %v", err)
	}

	queryHandler := query.NewHandler(store)
	router := server.NewRouter(queryHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server listening on :%d", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   GET /api/data        - Full retained history per key")
		log.Println("   GET /api/data/{key}  - One key's retained history")
		log.Println("   GET /api/latest      - Most recent value per key")
		log.Println("   GET /api/keys        - Known keys with descriptors")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	if err := sub.Unsubscribe(); err != nil {
		log.Printf("⚠️  Feed unsubscribe: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown: %v", err)
	}

	log.Println("👋 Telemetry server exited cleanly")
}
