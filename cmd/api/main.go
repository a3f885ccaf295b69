//	@title			Filegate API
//	@version		1.0
//	@description	User accounts plus a file-management facade over S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/filegate/service/internal/config"
	"github.com/filegate/service/internal/db"
	"github.com/filegate/service/internal/file"
	appMiddleware "github.com/filegate/service/internal/middleware"
	"github.com/filegate/service/internal/response"
	"github.com/filegate/service/internal/storage"
	"github.com/filegate/service/internal/user"

	_ "github.com/filegate/service/docs"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}
	initStorage(cfg, store)

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	fileHandler := file.NewHandler(store)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Liveness
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"message": "Hello World!"})
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/users", userHandler.List)
	r.Post("/users", userHandler.Create)

	r.Route("/files", func(r chi.Router) {
		r.Get("/", fileHandler.List)
		r.Post("/upload", fileHandler.Upload)
		r.Route("/{name}", func(r chi.Router) {
			r.Delete("/", fileHandler.Delete)
			r.Get("/download", fileHandler.Download)
			r.Get("/info", fileHandler.Info)
		})
	})

	r.Get("/health/storage", fileHandler.StorageHealth)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// newStorage picks the storage backend from configuration: the AWS SDK client
// for native S3, the MinIO client for everything S3-compatible.
func newStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	if cfg.UseAWSS3 {
		return storage.NewS3Storage(ctx,
			cfg.StorageRegion, cfg.StorageBucket, cfg.StorageAccessKey, cfg.StorageSecretKey)
	}
	return storage.NewMinioStorage(cfg.StorageEndpoint,
		cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageSecure)
}

// initStorage probes the backend and ensures the bucket exists. Failures are
// logged, not fatal: the service starts and reports them via /health/storage.
func initStorage(cfg *config.Config, store storage.ObjectStorage) {
	if cfg.SkipStorageInit {
		log.Println("object storage init skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.HealthCheck(ctx); err != nil {
		log.Printf("object storage unavailable: %v", err)
		return
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Printf("ensure bucket failed: %v", err)
		return
	}
	log.Println("object storage initialized")
}
