package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/db"
	"github.com/agritrace/agritrace-backend/internal/handlers"
	"github.com/agritrace/agritrace-backend/internal/ledger"
	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/middleware"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/server"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	ledgerRPCAddr := utils.GetEnv("LEDGER_RPC_ADDR", "http://localhost:26657", log)
	ledgerCommitTimeout := utils.GetEnvAsDuration("LEDGER_COMMIT_TIMEOUT", 15*time.Second, log)
	incognitoClientID, err := uuid.Parse(utils.GetEnv("INCOGNITO_CLIENT_ID", "", log))
	if err != nil {
		log.Warn("No incognito client configured, anonymous scans will be rejected", "error", err)
		incognitoClientID = uuid.Nil
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Ledger
	log.Info("Connecting to ledger RPC...", "addr", ledgerRPCAddr)
	ledgerClient, err := ledger.NewCometBFT(ledgerRPCAddr, ledgerCommitTimeout, log)
	if err != nil {
		log.Error("Ledger client init failed", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	projectRepo := repos.NewProjectRepo(thePG, log)
	qrRepo := repos.NewQRRepo(thePG, log)
	clientRepo := repos.NewClientRepo(thePG, log)
	referenceRepo := repos.NewReferenceRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, referenceRepo, clientRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	projectService := services.NewProjectService(thePG, log, projectRepo, referenceRepo)
	qrService := services.NewQRService(thePG, log, qrRepo, projectRepo, clientRepo, referenceRepo, ledgerClient)
	clientService := services.NewClientService(thePG, log, clientRepo, qrRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(log, authService)
	projectHandler := handlers.NewProjectHandler(log, projectService)
	qrHandler := handlers.NewQRHandler(log, qrService, incognitoClientID)
	clientHandler := handlers.NewClientHandler(log, clientService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		ProjectHandler: projectHandler,
		QRHandler:      qrHandler,
		ClientHandler:  clientHandler,
	})

	log.Info("Starting server...", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
