package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/claimwatch/claimwatch/internal/config"
	"github.com/claimwatch/claimwatch/internal/handlers"
	"github.com/claimwatch/claimwatch/internal/models"
	"github.com/claimwatch/claimwatch/internal/relay"
	"github.com/claimwatch/claimwatch/internal/repositories"
	"github.com/claimwatch/claimwatch/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := zap.NewProductionConfig().Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zlog.Fatal("connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Claim{}); err != nil {
		zlog.Fatal("migrate database", zap.Error(err))
	}

	verifier := services.NewVerifierClient(cfg.VerifierURL, cfg.VerifierAPIKey)
	claimRepo := repositories.NewClaimRepository(db)
	claimService := services.NewClaimService(verifier, claimRepo, zlog)

	rly := relay.New(verifier, zlog)
	rly.Start(context.Background())
	defer rly.Stop()

	h := handlers.NewHandler(claimService, rly.Registry, zlog)
	ws := handlers.NewWebSocketHandler(rly.Registry, zlog)

	engine := html.New("./static", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
	})
	app.Use(logger.New())

	app.Get("/", h.StatusPage)
	app.Post("/claims", h.SubmitClaim)
	app.Get("/claims", h.ListClaims)
	app.Get("/claims/:id", h.GetClaim)
	app.Get("/runs/:id", h.GetRun)
	app.Post("/runs/:id/votes", h.SubmitVote)
	app.Get("/ws", ws.WebSocketMiddleware, websocket.New(ws.HandleWebSocket))

	zlog.Info("claimwatch server listening", zap.String("port", cfg.Port))
	log.Fatal(app.Listen(":" + cfg.Port))
}
