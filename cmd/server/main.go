/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the access code server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env file (if present) and environment config
  2. Parse command-line flags (override environment)
  3. Initialize SQLite store
  4. Wire the access service and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (default from ACCESS_HTTP_ADDR)
  -db      SQLite database path (default from ACCESS_DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/access.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on a different address
  ./server -addr=":3000"

ENVIRONMENT:
  See config/config.go for the full ACCESS_* variable list. A local
  .env file is loaded when present.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/access-engine/access"
	"github.com/warp/access-engine/api"
	"github.com/warp/access-engine/config"
	"github.com/warp/access-engine/store/sqlite"
)

func main() {
	// Environment config, .env first so it can seed the variables
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override environment
	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the service
	gen := access.NewGenerator(cfg.CodeAlphabet, cfg.CodeLength)
	svc := access.NewService(store, store, gen, nil)

	// Initialize handler and router
	handler := api.NewHandler(svc, cfg.DefaultExpiryDays, cfg.DefaultUses)
	router := api.NewRouter(handler, cfg.AdminAPIKey, cfg.CORSOrigins)

	if cfg.AdminAPIKey == "" {
		log.Println("Warning: ACCESS_ADMIN_API_KEY is not set, admin API is disabled")
	}

	// Create server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost%s", *addr)
		log.Printf("📊 API available at http://localhost%s/api", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
