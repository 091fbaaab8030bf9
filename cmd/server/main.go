// Package main initializes and starts the FocusKeeper document-store
// server, setting up configuration, logging, database connections,
// repositories, services, and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/FocusKeeper/internal/config"
	"github.com/atinyakov/FocusKeeper/internal/db"
	"github.com/atinyakov/FocusKeeper/internal/logger"
	"github.com/atinyakov/FocusKeeper/internal/repository"
	"github.com/atinyakov/FocusKeeper/internal/server/handler/http"
	"github.com/atinyakov/FocusKeeper/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()
	addr := options.Port
	dbName := options.DatabaseDSN

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(dbName)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Periodically remove expired session tokens.
	db.StartExpiredTokenCleaner(context.Background(), postgresDB,
		time.Hour,
		zapLogger,
	)

	// Initialize repositories for authentication and document storage.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	docRepo := repository.NewPostgresDocumentRepository(postgresDB)

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo, time.Duration(options.TokenTTLHours)*time.Hour)
	docService := service.NewDocumentService(docRepo)

	// Create HTTP handlers for auth and document endpoints.
	authHandler := &http.AuthHandler{AuthService: authService}
	docHandler := &http.DocumentHandler{DocumentService: docService}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, docHandler, authService, zapLogger)

	zapLogger.Info("starting server", zap.String("addr", addr))
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		zapLogger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
