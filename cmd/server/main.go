/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the invoice ledger server. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse environment configuration and command-line flags
  2. Initialize SQLite store
  3. Wire the verifier, settlement client, and event bus
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  INVOICE_LEDGER_ADDR            Listen address (default :8080)
  INVOICE_LEDGER_DB              SQLite path (default invoices.db, ":memory:" for in-memory)
  INVOICE_LEDGER_JWT_SECRET      HMAC secret for consent proofs; if empty,
                                 the server runs with an allow-all verifier (dev only)
  INVOICE_LEDGER_ASSET_DECIMALS  Settlement asset decimal places (default 7)
  INVOICE_LEDGER_CORS_ORIGINS    Allowed CORS origins

  Flags -addr and -db override the environment when set.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database, exit.

SEE ALSO:
  - api/server.go: Router configuration
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

	"github.com/caarlos0/env/v11"

	"github.com/warp/invoice-ledger/api"
	"github.com/warp/invoice-ledger/auth"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/settlement"
	"github.com/warp/invoice-ledger/store/sqlite"
)

type config struct {
	Addr          string   `env:"INVOICE_LEDGER_ADDR" envDefault:":8080"`
	DBPath        string   `env:"INVOICE_LEDGER_DB" envDefault:"invoices.db"`
	JWTSecret     string   `env:"INVOICE_LEDGER_JWT_SECRET"`
	AssetDecimals int32    `env:"INVOICE_LEDGER_ASSET_DECIMALS" envDefault:"7"`
	CORSOrigins   []string `env:"INVOICE_LEDGER_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	var verifier ledger.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewTokenVerifier([]byte(cfg.JWTSecret))
	} else {
		log.Println("WARNING: no JWT secret configured, running with allow-all verifier")
		verifier = auth.AllowAll{}
	}

	bus := ledger.NewBus()
	bus.Subscribe(func(ev ledger.Event) {
		log.Printf("event %s %s %+v", ev.Topic, ev.ID, ev.Payload)
	})

	settler := settlement.NewTokenClient(cfg.AssetDecimals)
	svc := ledger.NewService(store, verifier, ledger.SystemClock(), settler, bus)

	router := api.NewRouter(api.NewHandler(svc), cfg.CORSOrigins)

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Invoice ledger listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

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
