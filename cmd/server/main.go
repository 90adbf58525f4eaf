package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maseda27/mealflow/configs"
	"github.com/maseda27/mealflow/internal/api/handlers"
	"github.com/maseda27/mealflow/internal/api/middleware"
	job "github.com/maseda27/mealflow/internal/jobs"
	"github.com/maseda27/mealflow/internal/repository"
	"github.com/maseda27/mealflow/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
		log.Fatalf("Failed to create images directory: %v", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	mealLogRepo := repository.NewMealLogRepository(db)
	if err := mealLogRepo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB, meal photos arrive base64-encoded
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-API-Key",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	openAIClient := service.NewOpenAIClient(cfg.OpenAIAPIKey)
	nutritionService := service.NewNutritionService(openAIClient)
	captionService := service.NewCaptionService(openAIClient)
	imageService := service.NewImageService(openAIClient)
	instagramService := service.NewInstagramService(*cfg)
	archiveService := service.NewArchiveService(*cfg)
	mealService := service.NewMealService(db, *cfg, mealLogRepo, nutritionService, captionService, imageService, instagramService, archiveService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/")
	api.Use(authMiddleware.AuthMiddleware())

	meal := handlers.NewMealHandler(mealService)
	api.Post("/meal/analyze", meal.AnalyzeMeal)
	api.Post("/meal/post", meal.PostMeal)
	api.Post("/meal/quick", meal.QuickPost)
	api.Post("/shortcut/meal", meal.ShortcutMeal)
	api.Get("/meal/logs", meal.ListLogs)

	// cron jobs
	if cfg.InstagramEnabled {
		sessionJob := job.NewSessionRefreshJob(instagramService)
		c := cron.New()
		c.AddFunc("@every 6h0m0s", sessionJob.RefreshSession)
		c.Start()
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://%s:%s", cfg.Host, cfg.Port)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
