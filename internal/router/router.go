package router

import (
	"log"
	"os"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmadeiros/commonshub/backend/internal/handlers"
	"github.com/jmadeiros/commonshub/backend/internal/middleware"
	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/internal/sync"
	"github.com/jmadeiros/commonshub/backend/pkg/config"
	"github.com/jmadeiros/commonshub/backend/pkg/metrics"
)

// Deps are the long-lived components the router wires together; the caller
// owns their shutdown.
type Deps struct {
	Broker        *realtime.Broker
	Bridge        *realtime.Bridge
	Notifications *sync.NotificationSync
	Feed          *sync.FeedSync
	Metrics       *metrics.Collector
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, firebaseAuthClient *auth.Client) *Deps {
	// AutoMigrate PostgreSQL models
	err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Membership{},
		&models.Notification{},
		&models.Comment{},
		&models.Reaction{},
		&models.Event{},
		&models.EventRSVP{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Realtime channel ---
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "supersecretjwtkey"
	}
	hub := realtime.NewHub()
	var bridge *realtime.Bridge
	if db.Redis != nil {
		bridge = realtime.NewBridge(db.Redis, cfg.RedisChannel, hub)
		log.Println("Redis realtime bridge configured.")
	}
	broker := realtime.NewBroker(hub, bridge, realtime.NewJWTVerifier(jwtSecret))

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres, broker)
	postRepo := repositories.NewMongoPostRepository(db.Mongo.Database(cfg.MongoDatabase), broker)
	commentRepo := repositories.NewPostgresCommentRepository(db.Postgres, broker)
	reactionRepo := repositories.NewPostgresReactionRepository(db.Postgres, broker)
	eventRepo := repositories.NewPostgresEventRepository(db.Postgres)
	membershipRepo := repositories.NewPostgresMembershipRepository(db.Postgres)

	// --- Sync engines ---
	syncOpts := sync.Options{
		SettleDelay:  cfg.SyncSettleDelay,
		CacheIdleTTL: cfg.CacheIdleTTL,
		FetchLimit:   cfg.FeedPageSize,
	}
	notificationSync := sync.NewNotificationSync(notificationRepo, broker, collector, syncOpts)
	feedSync := sync.NewFeedSync(postRepo, commentRepo, reactionRepo, broker, collector, syncOpts)
	log.Println("Sync engines configured.")

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api)
	log.Println("User profile routes configured.")

	// Organization routes
	orgHandler := handlers.NewOrganizationHandler(membershipRepo, userRepo)
	orgHandler.RegisterOrganizationRoutes(api)
	log.Println("Organization routes configured.")

	// Feed routes
	feedHandler := handlers.NewFeedHandler(feedSync, postRepo, membershipRepo, userRepo)
	feedHandler.RegisterFeedRoutes(api)
	log.Println("Feed routes configured.")

	// Comment routes
	commentHandler := handlers.NewCommentHandler(feedSync, postRepo, commentRepo, membershipRepo, notificationRepo, userRepo)
	commentHandler.RegisterCommentRoutes(api)
	log.Println("Comment routes configured.")

	// Reaction routes
	reactionHandler := handlers.NewReactionHandler(feedSync, postRepo, reactionRepo, membershipRepo, notificationRepo, userRepo)
	reactionHandler.RegisterReactionRoutes(api)
	log.Println("Reaction routes configured.")

	// Event routes
	eventHandler := handlers.NewEventHandler(eventRepo, membershipRepo, notificationRepo, userRepo)
	eventHandler.RegisterEventRoutes(api)
	log.Println("Event routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationSync, userRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")

	return &Deps{
		Broker:        broker,
		Bridge:        bridge,
		Notifications: notificationSync,
		Feed:          feedSync,
		Metrics:       collector,
	}
}
