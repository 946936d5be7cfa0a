// main is the entry point of the Catalog API application.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Initialise one record store per kind (products, students)
//  4. Register all HTTP routes and wrap them in middleware
//  5. Start the HTTP server in a separate goroutine
//  6. Block the main goroutine until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/catalog-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/catalog-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aanand-mishra/catalog-api/internal/config"
	"github.com/aanand-mishra/catalog-api/internal/http/handlers/records"
	"github.com/aanand-mishra/catalog-api/internal/http/middleware"
	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/storage/jsonfile"
	"github.com/aanand-mishra/catalog-api/internal/storage/memory"
	"github.com/aanand-mishra/catalog-api/internal/storage/sqlite"
	"github.com/aanand-mishra/catalog-api/internal/types"
	"github.com/aanand-mishra/catalog-api/internal/utils/response"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad reads the YAML config and panics if anything is wrong.
	// The name "Must" signals: if this returns, config is guaranteed valid.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// slog is Go's structured logger (stdlib since Go 1.21).
	// Structured logging writes key=value pairs rather than plain strings,
	// making logs easy to filter/search in tools like Loki or Datadog.
	log := setupLogger(cfg.Env)

	// Handlers log through slog's package-level functions, so point the
	// default logger at the one we just configured.
	slog.SetDefault(log)

	log.Info("starting catalog-api",
		slog.String("env", cfg.Env),
		slog.String("backend", cfg.StorageBackend),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// One store per kind, each owning its own data file. We hold the
	// results as the storage.Storage INTERFACE, not a concrete type —
	// the backend is chosen by config and the rest of the code never
	// knows which one it got.
	//
	// A store that fails to initialise — unreadable data dir, corrupt
	// snapshot — aborts startup. Serving requests against a broken store
	// would be worse than not starting.
	products, err := newStorage(cfg, log, types.Product, types.DefaultProducts())
	if err != nil {
		log.Error("failed to initialise product storage",
			slog.String("error", err.Error()))
		os.Exit(1) // non-zero exit code signals failure to the OS / CI system
	}

	students, err := newStorage(cfg, log, types.Student, types.DefaultStudents())
	if err != nil {
		log.Error("failed to initialise student storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised",
		slog.String("backend", cfg.StorageBackend),
		slog.String("data_dir", cfg.DataDir))

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	// http.NewServeMux() creates an empty router.
	// HandleFunc maps a METHOD+PATTERN to a handler function.
	//
	// The handler functions (records.New, records.Get, etc.) are
	// FACTORIES — they receive a store and return the actual handler.
	// This is the dependency injection / closure pattern.
	//
	// Route table (same shape for both resources):
	//   POST   /api/products        → create a new product
	//   GET    /api/products        → list products (?field=value filters)
	//   GET    /api/products/{id}   → get one product by id
	//   PUT    /api/products/{id}   → update a product
	//   DELETE /api/products/{id}   → delete a product
	//   GET    /health              → liveness probe
	router := http.NewServeMux()

	router.HandleFunc("POST /api/products", records.New(types.Product.Name, products))
	router.HandleFunc("GET /api/products", records.GetList(types.Product.Name, products))
	router.HandleFunc("GET /api/products/{id}", records.Get(types.Product.Name, products))
	router.HandleFunc("PUT /api/products/{id}", records.Update(types.Product.Name, products))
	router.HandleFunc("DELETE /api/products/{id}", records.Delete(types.Product.Name, products))

	router.HandleFunc("POST /api/students", records.New(types.Student.Name, students))
	router.HandleFunc("GET /api/students", records.GetList(types.Student.Name, students))
	router.HandleFunc("GET /api/students/{id}", records.Get(types.Student.Name, students))
	router.HandleFunc("PUT /api/students/{id}", records.Update(types.Student.Name, students))
	router.HandleFunc("DELETE /api/students/{id}", records.Delete(types.Student.Name, students))

	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Wrap the router so every request gets an id and a completion log.
	// The request flows RequestID → Logger → router.
	handler := middleware.RequestID(middleware.Logger(log)(router))

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	// http.Server is a struct. We configure it here but don't start it yet.
	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr, // e.g. "localhost:8082"
		Handler: handler,             // every request goes through the middleware chain

		// Production hardening — set timeouts to prevent slow-client attacks.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks forever (it loops accepting connections).
	// If we called it here in main(), the graceful-shutdown code below
	// would never run. So we run it in a separate goroutine.
	//
	// go func() { ... }() is an immediately-invoked goroutine (anonymous
	// function launched with the `go` keyword).
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ListenAndServe returns http.ErrServerClosed when Shutdown() is
		// called. That's expected — we don't want to log it as an error.
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	// make(chan os.Signal, 1) creates a buffered channel of size 1.
	// Buffered so we don't miss the signal if main is briefly busy.
	done := make(chan os.Signal, 1)

	// signal.Notify registers our channel to receive specific OS signals:
	//   os.Interrupt = Ctrl+C (SIGINT)
	//   syscall.SIGTERM = sent by `kill <pid>` or container orchestrators
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// <-done blocks (pauses) the main goroutine here.
	// The program stays alive because this goroutine is running.
	// When a signal arrives, done receives it and we unblock.
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// context.WithTimeout gives the shutdown a 5-second deadline.
	// If in-flight requests don't finish within 5 seconds,
	// the context cancels and Shutdown returns an error.
	//
	// defer cancel() ensures the context's resources are freed
	// when main() returns, even if Shutdown finishes early.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// server.Shutdown:
	//   • Stops accepting new connections
	//   • Waits for active requests to complete (up to ctx deadline)
	//   • Returns nil on clean shutdown, error if deadline exceeded
	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// newStorage builds the backend selected in the config for one kind.
// Each backend keeps its data under cfg.DataDir in its own file, so the
// backends never trip over each other's formats.
func newStorage(cfg *config.Config, log *slog.Logger, kind types.Kind, defaults []types.Record) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case "memory":
		return memory.New(kind, defaults)

	case "sqlite":
		return sqlite.New(sqlite.Params{
			Kind:     kind,
			Path:     filepath.Join(cfg.DataDir, kind.Name+".db"),
			Defaults: defaults,
		})

	case "json":
		return jsonfile.New(jsonfile.Params{
			Kind:        kind,
			Path:        filepath.Join(cfg.DataDir, kind.Name+".json"),
			Defaults:    defaults,
			SaveTimeout: cfg.WriteTimeout,
			Logger:      log,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
//
//	JSON logs are easy to ingest by log aggregators (Loki, CloudWatch, etc.)
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo, // INFO and above in production
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // more verbose in staging
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // all levels in development
			}),
		)
	}
}
