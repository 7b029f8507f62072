package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pos_settlement/pkg/config"
	"pos_settlement/pkg/controllers/staff"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/middleware"
	"pos_settlement/pkg/payment"
	"pos_settlement/pkg/refund"
	"pos_settlement/pkg/release"
	"pos_settlement/pkg/routes"
	"pos_settlement/pkg/services"
	"pos_settlement/pkg/shift"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Initialize database
	log.Println("🔌 Initializing database connection...")
	if err := database.InitDatabase(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	if err := database.AutoMigrate(database.DB); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}

	// Initialize GCP Storage service
	if err := services.InitGCPStorage(); err != nil {
		log.Printf("⚠️  Warning: GCP Storage initialization failed: %v", err)
	} else {
		log.Println("✅ GCP Storage initialized successfully")
	}
	defer services.CloseGCPStorage()

	// Initialize FCM service
	if err := services.InitFCM(); err != nil {
		log.Printf("⚠️  Warning: FCM initialization failed: %v", err)
	} else {
		log.Println("✅ FCM initialized successfully")
	}

	// Initialize Razorpay service
	if err := services.InitRazorpay(); err != nil {
		log.Printf("⚠️  Warning: Razorpay initialization failed: %v", err)
	} else {
		log.Println("✅ Razorpay initialized successfully")
	}

	dispatcher := newDispatcher(database.DB)
	dispatcher.Start()

	// Set Gin mode based on environment
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), middleware.RecoveryMiddleware(), middleware.ErrorMiddleware())

	store := cookie.NewStore([]byte(config.AppConfig.SessionSecret))
	router.Use(sessions.Sessions("session", store))

	setupCORS(router)

	setupRoutes(router, newStaffController(database.DB, dispatcher))

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Server running in %s mode\n", config.AppConfig.Environment)
		log.Printf("📡 Server listening on http://localhost:%s\n", config.AppConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}
	if err := dispatcher.Stop(ctx); err != nil {
		log.Printf("⚠️  Notification queue not drained: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}

// newDispatcher picks FCM and receipt delivery when configured and falls
// back to log output otherwise.
func newDispatcher(db *gorm.DB) *services.Dispatcher {
	var publisher services.Publisher = services.LogPublisher{}
	if services.FCMEnabled() {
		publisher = services.FCMPublisher{}
	}

	var receipts services.ReceiptSender = services.LogReceiptSender{}
	if services.FCMEnabled() || services.GCSEnabled() {
		receipts = services.NewReceiptDelivery(db)
	}

	cfg := config.AppConfig
	return services.NewDispatcher(publisher, receipts, services.DispatcherConfig{
		Workers:       cfg.NotifyWorkers,
		QueueSize:     cfg.NotifyQueueSize,
		MaxAttempts:   cfg.NotifyMaxAttempts,
		RetryBackoff:  cfg.NotifyRetryBackoff,
		RetryMaxDelay: cfg.NotifyRetryMaxDelay,
	})
}

func newStaffController(db *gorm.DB, notifier payment.Notifier) *staff.Controller {
	cfg := config.AppConfig
	loc := cfg.Location()

	var gateway payment.Gateway
	if g := services.NewRazorpayGateway(); g != nil {
		gateway = g
	}

	cash := ledger.New(db, ledger.Options{Location: loc, MaxRetries: cfg.SettlementMaxRetries})
	payments := payment.NewProcessor(db, cash, release.NewCoordinator(time.Now), gateway, notifier,
		payment.Options{Location: loc, MaxRetries: cfg.SettlementMaxRetries})
	refunds := refund.NewWorkflow(db, cash, refund.Options{Location: loc, MaxRetries: cfg.SettlementMaxRetries})
	shifts := shift.NewManager(db, cash, shift.Options{Location: loc, MaxRetries: cfg.SettlementMaxRetries})

	return staff.NewController(db, payments, refunds, shifts, cash)
}

// setupCORS allows the configured origins in production and any origin in development
func setupCORS(router *gin.Engine) {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Range", "X-Content-Range"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	origins := parseOrigins(config.AppConfig.AllowedOrigins)
	if config.IsProduction() && len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		log.Printf("🔒 CORS enabled for origins: %v\n", origins)
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return true
		}
		log.Println("🔓 CORS enabled for all origins (development mode)")
	}

	router.Use(cors.New(corsConfig))
}

// parseOrigins splits comma-separated origin string
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// setupRoutes sets up all application routes
func setupRoutes(router *gin.Engine, ctl *staff.Controller) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "POS settlement server is running...")
	})

	api := router.Group("/api")
	{
		routes.RegisterAuthRoutes(api)
		routes.RegisterStaffRoutes(api, ctl)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":      "ok",
				"environment": config.AppConfig.Environment,
				"services":    services.GetServiceStatus(),
			})
		})
	}

	router.NoRoute(middleware.NotFoundHandler())
}
