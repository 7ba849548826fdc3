package main

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmadeiros/commonshub/backend/internal/router"
	"github.com/jmadeiros/commonshub/backend/pkg/config"
	"github.com/jmadeiros/commonshub/backend/pkg/firebase"
	"github.com/jmadeiros/commonshub/backend/pkg/metrics"
	"github.com/jmadeiros/commonshub/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	config.SetupMiddleware(e)

	// Setup routes and dependencies
	deps := router.SetupRoutes(e, cfg, db, firebaseApp.AuthClient)
	defer deps.Notifications.Close()
	defer deps.Feed.Close()
	if deps.Bridge != nil {
		defer deps.Bridge.Close()
	}

	// Validator
	e.Validator = validators.NewValidator()

	// Prometheus scrape endpoint on its own port
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
		log.Printf("Metrics server listening on :%s", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
