package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	credconfig "storage-gateway/internal/credentials/config"
	"storage-gateway/internal/di"
	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage/adapter/driver/memory"
	storageconfig "storage-gateway/internal/storage/config"
	"storage-gateway/internal/storage/domain/model"

	"github.com/caarlos0/env/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"localhost"`
	Port string `env:"SERVER_PORT" envDefault:"3000"`
}

func main() {
	fmt.Println("Storage Gateway - Starting Application...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	serverCfg := &ServerConfig{}
	if err := env.Parse(serverCfg); err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	appLogger.Info("Application configuration loaded successfully")

	container := di.NewContainer()
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Load module configurations
	credCfg, err := credconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load credentials configuration: %v", err)
	}
	storageCfg, err := storageconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load storage configuration: %v", err)
	}

	// MongoDB holds connected accounts
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(credCfg.MongoDBURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Errorf("Failed to disconnect MongoDB: %v", err)
		}
	}()
	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	appLogger.Info("MongoDB connection established successfully")

	// Redis serves sessions and the audit stream
	redisClient := redis.NewClient(&redis.Options{
		Addr:     credCfg.RedisAddr,
		Password: credCfg.RedisPassword,
		DB:       credCfg.RedisDB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Errorf("Failed to close Redis client: %v", err)
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}
	appLogger.Info("Redis connection established successfully")

	bus := eventbus.NewEventBus(appLogger)

	if err := container.InitializeStorage(storageCfg, redisClient, bus, appLogger); err != nil {
		log.Fatalf("Failed to initialize storage module: %v", err)
	}
	appLogger.Info("Storage module initialized successfully")

	if err := registerProviders(container, storageCfg, appLogger); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	mongoDB := mongoClient.Database(credCfg.DatabaseName)
	if err := container.InitializeCredentials(mongoDB, credCfg); err != nil {
		log.Fatalf("Failed to initialize credentials module: %v", err)
	}
	appLogger.Info("Credentials module initialized successfully")

	app := fiber.New(fiber.Config{
		AppName:      "Storage Gateway API v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			appLogger.Errorf("HTTP Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal Server Error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		healthCtx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		if err := container.HealthCheck(healthCtx); err != nil {
			appLogger.Errorf("Health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "UNHEALTHY",
				"error":  err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status":    "HEALTHY",
			"timestamp": time.Now().UTC(),
			"providers": container.GetStorageModule().Registry().Len(),
		})
	})

	// Register gateway routes
	storageModule := container.GetStorageModule()
	credModule := container.GetCredentialsModule()
	storageModule.RegisterRoutes(
		app,
		credModule.TokenManager(),
		credModule.ResolverChain(),
		credModule.Sessions(),
		credCfg.SessionCookieName,
		credCfg.SessionTTL,
	)
	appLogger.Info("Gateway routes registered")

	serverAddr := fmt.Sprintf("%s:%s", serverCfg.Host, serverCfg.Port)
	appLogger.Infof("All modules initialized. Starting HTTP server on %s", serverAddr)

	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(serverAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("Server forced to shutdown: %v", err)
		}
		appLogger.Info("HTTP server stopped")
	}

	fmt.Println("Application stopped gracefully.")
}

// registerProviders loads the declarative provider set and binds each
// descriptor to its driver. File-declared providers get the in-memory driver
// unless a real driver is wired in code; an empty file path registers a
// single development provider.
func registerProviders(container *di.Container, cfg *storageconfig.Config, appLogger logger.Logger) error {
	module := container.GetStorageModule()

	if cfg.ProvidersFile == "" {
		desc := &model.ProviderDescriptor{
			ShortName:       "memory",
			FullName:        "In-Memory Development Provider",
			OwnerTypes:      []model.OwnerType{model.OwnerTypeUser},
			Categories:      []model.Category{model.CategoryStorage},
			Capabilities:    []model.Capability{model.CapabilityFileListing, model.CapabilityRevisions, model.CapabilityUpload},
			MaxUploadSize:   32 << 20,
			ExpiresIn:       model.Duration(time.Hour),
			RefreshLeadTime: model.Duration(5 * time.Minute),
			FolderTypeCodes: []int{3, 4},
		}
		if err := module.RegisterProvider(desc, memory.NewDriver(time.Hour)); err != nil {
			return err
		}
		appLogger.Warn("PROVIDERS_FILE not set, registered in-memory development provider only")
		return nil
	}

	descriptors, err := storageconfig.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return err
	}
	for i := range descriptors {
		desc := &descriptors[i]
		if err := module.RegisterProvider(desc, memory.NewDriver(desc.ExpiresIn.Std())); err != nil {
			return err
		}
	}
	appLogger.Infof("Registered %d providers from %s", len(descriptors), cfg.ProvidersFile)
	return nil
}
