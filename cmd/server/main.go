// Package main is the entry point for the Papertrail WiFi server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/mmolhoek/papertrail-sub003/internal/config"
	"github.com/mmolhoek/papertrail-sub003/internal/database"
	"github.com/mmolhoek/papertrail-sub003/internal/database/models"
	"github.com/mmolhoek/papertrail-sub003/internal/database/repositories"
	"github.com/mmolhoek/papertrail-sub003/internal/services/pubsub"
	"github.com/mmolhoek/papertrail-sub003/internal/services/wifi"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	printBanner(cfg)

	// Connect to database
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&models.HotspotSetting{},
		&models.FallbackNetwork{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	// Assemble the WiFi connectivity core
	executor := wifi.NewExecutor()
	scanner := wifi.NewNetworkScanner(executor, cfg.ScanSettle)
	connections := wifi.NewConnectionManager(executor, scanner, wifi.ConnectionManagerConfig{
		Interface:       cfg.WiFiInterface,
		ConnectTimeout:  cfg.ConnectTimeout,
		MonitorInterval: cfg.MonitorInterval,
	})
	stateMachine := wifi.NewStateMachine(scanner, connections, wifi.StateMachineConfig{
		PollInterval:       cfg.PollInterval,
		GracePeriod:        cfg.GracePeriod,
		DebounceDelay:      cfg.DebounceDelay,
		OnboardingComplete: cfg.OnboardingComplete,
	})
	hotspot := wifi.NewHotspotManager(scanner, connections, repositories.NewWiFiStore(db), stateMachine, wifi.HotspotManagerConfig{
		DefaultSSID:      cfg.HotspotSSID,
		DefaultPassword:  cfg.HotspotPassword,
		AttemptTimeout:   cfg.AttemptTimeout,
		SettleDelay:      cfg.SettleDelay,
		VerifyRetryDelay: cfg.VerifyRetryDelay,
	})
	stateMachine.BindHotspotManager(hotspot)

	// Fan state and connection changes out to the websocket feed
	ps := pubsub.New()
	stateMachine.OnStateChange(func(state wifi.State) {
		ps.Publish(pubsub.TopicWiFiState, stateEvent{State: state})
	})
	stateMachine.OnConnectionChange(func(connected bool) {
		ps.Publish(pubsub.TopicWiFiConnection, connectionEvent{Connected: connected})
	})

	if err := stateMachine.Initialize(); err != nil {
		log.Fatalf("Failed to initialize WiFi state machine: %v", err)
	}
	defer stateMachine.Dispose()

	// Create router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	api := newAPI(stateMachine, ps)
	api.routes(router)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  Papertrail WiFi Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Interface:   %s\n", cfg.WiFiInterface)
	fmt.Printf("  Hotspot:     %s\n", cfg.HotspotSSID)
	fmt.Println("============================================")
}
