// Package server wires storage, handlers, and HTTP routing.
package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/issmimic/iss-telemetry/pkg/config"
	"github.com/issmimic/iss-telemetry/pkg/httpx"
	"github.com/issmimic/iss-telemetry/pkg/query"
	"github.com/issmimic/iss-telemetry/pkg/storage"
	badgerstore "github.com/issmimic/iss-telemetry/pkg/storage/badger"
	"github.com/issmimic/iss-telemetry/pkg/storage/sqlite"
)

var startTime = time.Now()

// InitializeStorage opens the retention store selected by the configuration.
// A failure here is fatal to process start; everything after it is not.
func InitializeStorage(cfg config.Config) (storage.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	switch cfg.StorageBackend {
	case "sqlite", "":
		path := filepath.Join(cfg.DataDir, "telemetry.db")
		log.Printf("💾 Opening SQLite retention store at %s", path)
		return sqlite.Open(path)
	case "badger":
		path := filepath.Join(cfg.DataDir, "badger")
		log.Printf("💾 Opening Badger retention store at %s", path)
		return badgerstore.New(badgerstore.Config{Path: path})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewRouter builds the HTTP API router.
func NewRouter(queryHandler *query.Handler) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware for API access
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/data", queryHandler.HandleGetAll).Methods("GET")
	api.HandleFunc("/data/{key}", queryHandler.HandleGetKey).Methods("GET")
	api.HandleFunc("/latest", queryHandler.HandleGetLatest).Methods("GET")
	api.HandleFunc("/keys", queryHandler.HandleListKeys).Methods("GET")
	api.HandleFunc("/health", handleHealth).Methods("GET")

	return router
}

// handleHealth returns service health status.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(startTime).String(),
	})
}
