package main

import (
	"fmt"
	"time"

	"questboard/configs"
	v1 "questboard/internal/api/v1"
	"questboard/internal/api/v1/handlers"
	"questboard/internal/config"
	"questboard/internal/middleware"
	"questboard/internal/repository"
	"questboard/pkg/database"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.UploadDir = cfg.UploadDir

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database Connected")

	// Schema bootstrap plus immutable reference data (characters,
	// difficulties). Seeding is a no-op on an already-seeded database.
	repository.CreateTableIfNotExists(config.DB)
	repository.SeedCharactersAndDifficulties(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	handlers.Identity = handlers.NewGoogleProvider(cfg)

	// Body limit sits above the attachment ceiling so oversize uploads reach
	// the validator and get a proper field error instead of a bare 413.
	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app)

	logger.SystemLogger.Info("Application ready", zap.Int("port", cfg.AppPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.AppPort)); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
