package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agritrace/agritrace-backend/internal/handlers"
	"github.com/agritrace/agritrace-backend/internal/middleware"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	ProjectHandler *handlers.ProjectHandler
	QRHandler      *handlers.QRHandler
	ClientHandler  *handlers.ClientHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/token", cfg.AuthHandler.IssueToken)
		api.GET("/projects/:projectId", cfg.ProjectHandler.Get)
		api.GET("/projects/index/:projectIndex", cfg.ProjectHandler.GetByIndex)
		api.GET("/projects/:projectId/processes", cfg.ProjectHandler.ListProcesses)
		api.GET("/projects/:projectId/expectations", cfg.ProjectHandler.ListExpectations)
		api.GET("/projects/:projectId/outputs", cfg.ProjectHandler.ListOutputs)
		api.GET("/projects/:projectId/cultivation-plan", cfg.ProjectHandler.GetCultivationPlan)
		api.POST("/qr/scan", cfg.AuthMiddleware.OptionalAuth(), cfg.QRHandler.Scan)
	}

	// ===============
	// || Protected ||
	// ===============
	farm := router.Group("/api")
	farm.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireRole(requestdata.RoleFarm))
	{
		farm.POST("/projects", cfg.ProjectHandler.Initiate)
		farm.GET("/projects", cfg.ProjectHandler.List)
		farm.PATCH("/projects/:projectId", cfg.ProjectHandler.UpdateInfo)
		farm.DELETE("/projects/:projectId", cfg.ProjectHandler.Delete)

		farm.POST("/projects/:projectId/processes", cfg.ProjectHandler.AddProcess)
		farm.PATCH("/projects/:projectId/processes/:processId", cfg.ProjectHandler.UpdateProcess)
		farm.DELETE("/projects/:projectId/processes/:processId", cfg.ProjectHandler.DeleteProcess)

		farm.POST("/projects/:projectId/expectations", cfg.ProjectHandler.AddExpectation)
		farm.PATCH("/projects/:projectId/expectations/:expectationId", cfg.ProjectHandler.UpdateExpectation)
		farm.DELETE("/projects/:projectId/expectations/:expectationId", cfg.ProjectHandler.DeleteExpectation)

		farm.POST("/projects/:projectId/outputs", cfg.ProjectHandler.AddOutput)
		farm.PATCH("/projects/:projectId/outputs/:outputId", cfg.ProjectHandler.UpdateOutput)
		farm.DELETE("/projects/:projectId/outputs/:outputId", cfg.ProjectHandler.DeleteOutput)

		farm.GET("/projects/:projectId/deleted-items", cfg.ProjectHandler.ListDeletedItems)
		farm.PUT("/projects/:projectId/cameras", cfg.ProjectHandler.AssignCameras)
		farm.PUT("/projects/:projectId/cultivation-plan", cfg.ProjectHandler.AttachCultivationPlan)

		farm.POST("/projects/:projectId/outputs/:outputId/qr/export", cfg.QRHandler.Export)
		farm.GET("/projects/:projectId/qr", cfg.QRHandler.ListByProject)
		farm.GET("/farms/me/qr/stats", cfg.QRHandler.Stats)
	}

	client := router.Group("/api/clients")
	client.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireRole(requestdata.RoleClient))
	{
		client.GET("/me/history", cfg.ClientHandler.GetHistory)
		client.POST("/me/history/:unitId/retry", cfg.ClientHandler.RetryPurchaseAppend)
	}

	return router
}
