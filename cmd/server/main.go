/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger backend. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize the store (Postgres when DATABASE_URL is set, else SQLite)
  3. Initialize the event publisher (Kafka when KAFKA_BROKERS is set)
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: ledger.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  DATABASE_URL    Postgres connection string; overrides -db
  KAFKA_BROKERS   Comma-separated broker list; enables event publishing
  KAFKA_TOPIC     Topic for ledger events (default: ledger_activity)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the publisher and database
  4. Exit

EXAMPLES:
  # Run with a file database
  ./server -db="./data/ledger.db"

  # Run against Postgres with Kafka events
  DATABASE_URL=postgres://... KAFKA_BROKERS=localhost:9092 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Database implementations
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shopbook/ledger/api"
	"github.com/shopbook/ledger/events"
	"github.com/shopbook/ledger/ledger"
	"github.com/shopbook/ledger/store/postgres"
	"github.com/shopbook/ledger/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	flag.Parse()

	// Initialize store
	var (
		store   ledger.Store
		closeDB func() error
	)
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pg, err := postgres.New(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		store, closeDB = pg, pg.Close
		log.Println("Using Postgres store")
	} else {
		lite, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		store, closeDB = lite, lite.Close
		log.Printf("Using SQLite store at %s", *dbPath)
	}
	defer closeDB()

	// Initialize event publisher
	var publisher events.Publisher = events.Noop{}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = events.DefaultTopic
		}
		publisher = events.NewKafkaPublisher(strings.Split(brokers, ","), topic)
		log.Printf("Publishing events to Kafka topic %q via %s", topic, brokers)
	}
	defer publisher.Close()

	// Initialize handler and router
	service := ledger.NewService(store, publisher)
	handler := api.NewHandler(store, service)
	router := api.NewRouter(handler, store)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📒 API available at http://localhost:%d/api", *port)
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
