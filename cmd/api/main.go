// Relaychat Server - Auth Gateway and Messaging Broker
//
// This service is the entry point for both halves of the chat platform: a
// Fiber HTTP gateway that handles signup, login, token verification, user
// search, and public-key exchange, and a TCP messaging broker that accepts
// long-lived client sockets and routes framed chat messages between them.
//
// ARCHITECTURE ROLE:
// - HTTP Auth Gateway: Credential Store + Token Service behind /signup,
//   /login, /verify-token, /logout, /search, /store_public_key,
//   /get_public_key.
// - TCP Messaging Broker: Presence Registry + Message Log behind a
//   newline-framed socket protocol, bounded by a connection pool.
// - Presence Bus: best-effort Redis pub/sub announcing join/leave, with an
//   in-process fallback when Redis is unavailable.
//
// STARTUP SEQUENCE:
// 1. Load configuration from environment variables
// 2. Initialize structured logging with appropriate levels
// 3. Connect to PostgreSQL and run migrations
// 4. Establish Redis connection with fallback to a no-op presence bus
// 5. Build the Token Service, auth Service, Presence Registry, and the
//    messaging broker's connection pool
// 6. Start the TCP messaging broker in the background
// 7. Setup HTTP handlers with dependency injection
// 8. Configure Fiber web server with middleware
// 9. Register API routes and start the HTTP server
// 10. Setup graceful shutdown handling for both servers
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/server/internal/auth"
	"relaychat/server/internal/broker"
	"relaychat/server/internal/config"
	"relaychat/server/internal/database"
	"relaychat/server/internal/handlers"
	"relaychat/server/internal/middleware"
	"relaychat/server/internal/presence"
	"relaychat/server/internal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	// PHASE 1: CONFIGURATION AND LOGGING SETUP
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.Server.Environment == "development" || cfg.Server.Verbose {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// PHASE 2: DATABASE CONNECTION SETUP
	slog.Info("Connecting to PostgreSQL database")
	db, err := database.NewConnection(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		log.Fatal("Database connection required for auth and messaging:", err)
	}
	defer db.Close()
	slog.Info("Database connection established successfully")

	if err := db.Migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		log.Fatal("Database migration required at startup:", err)
	}

	// PHASE 3: PRESENCE BUS SETUP WITH FALLBACK STRATEGY
	// Redis carries join/leave announcements for the Presence Registry.
	// Fallback to a no-op bus keeps the broker usable if Redis is down.
	var redisAddr string
	if len(cfg.Redis.URL) > 8 && cfg.Redis.URL[:8] == "redis://" {
		redisAddr = cfg.Redis.URL[8:]
	} else {
		redisAddr = cfg.Redis.URL
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	var bus presence.Bus
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis connection failed, presence announcements disabled", "error", err)
		redisClient.Close()
		bus = presence.NoopBus{}
	} else {
		slog.Info("Redis connection established successfully", "addr", redisAddr)
		bus = presence.NewRedisBus(redisClient)
	}
	pingCancel()

	// PHASE 4: SERVICE INITIALIZATION
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret)
	authService := auth.NewService(db, tokenService, cfg.Auth.PasswordPepper)
	registry := presence.NewRegistry(bus)

	// PHASE 5: MESSAGING BROKER SETUP
	connPool := workers.NewConnectionPool(cfg.Socket.MaxConnections)
	msgBroker := broker.New(db, registry, tokenService, connPool, broker.Config{
		MaxConnections: cfg.Socket.MaxConnections,
		RequireToken:   cfg.Auth.RequireAuthToken,
	})

	// The socket is bound here, before the HTTP gateway starts, so a bind
	// failure is fatal at startup.
	brokerAddr := fmt.Sprintf("%s:%s", cfg.Socket.Host, cfg.Socket.Port)
	brokerLn, err := net.Listen("tcp", brokerAddr)
	if err != nil {
		slog.Error("Messaging broker failed to start", "error", err)
		log.Fatal(err)
	}

	brokerErrCh := make(chan error, 1)
	go func() {
		slog.Info("Starting messaging broker", "address", brokerAddr)
		if err := msgBroker.Serve(brokerLn); err != nil {
			brokerErrCh <- err
		}
	}()

	// PHASE 6: HTTP HANDLER INITIALIZATION WITH DEPENDENCY INJECTION
	slog.Info("Initializing handlers")
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(cfg, db, connPool, registry)

	// PHASE 7: FIBER WEB SERVER CONFIGURATION
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
	})

	// PHASE 8: MIDDLEWARE STACK SETUP
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// PHASE 9: API ROUTE REGISTRATION
	// Routes live at the root level, not behind an /api prefix, so
	// existing chat clients need no path translation.
	app.Get("/health", healthHandler.HandleHealth)

	app.Post("/signup", authHandler.HandleSignup)
	app.Post("/login", authHandler.HandleLogin)
	app.Post("/verify-token", authHandler.HandleVerifyToken)
	app.Post("/logout", authHandler.HandleLogout)
	app.Get("/search", authHandler.HandleSearch)
	app.Post("/store_public_key", authHandler.HandleStorePublicKey)
	app.Post("/get_public_key", authHandler.HandleGetPublicKey)

	// PHASE 10: GRACEFUL SHUTDOWN HANDLING
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// 1. Stop the messaging broker first, so no new frames arrive while
		// the rest of the stack tears down.
		if err := msgBroker.Shutdown(shutdownCtx); err != nil {
			slog.Error("Messaging broker shutdown error", "error", err)
		}

		// 2. Close the presence bus.
		if err := bus.Close(); err != nil {
			slog.Error("Presence bus close error", "error", err)
		}

		// 3. Close database connections.
		if err := db.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}

		// 4. Shutdown HTTP server gracefully - allows in-flight requests to
		// complete.
		if err := app.Shutdown(); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		slog.Info("Server shutdown complete")
		os.Exit(0)
	}()

	// PHASE 11: SERVER STARTUP
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting relaychat auth gateway",
		"address", addr,
		"environment", cfg.Server.Environment,
		"socket_address", fmt.Sprintf("%s:%s", cfg.Socket.Host, cfg.Socket.Port))

	select {
	case err := <-brokerErrCh:
		slog.Error("Messaging broker failed to start", "error", err)
		log.Fatal(err)
	default:
	}

	if err := app.Listen(addr); err != nil {
		slog.Error("Server failed to start", "error", err)
		log.Fatal(err)
	}
}
