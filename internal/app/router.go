package app

import (
	"coursewise_backend/docs"
	"coursewise_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)
		api.GET("/health/llm", c.health.LLMHealthCheck)

		students := api.Group("/students")
		{
			students.POST("", c.student.Register)
			students.GET("/:id", c.student.Get)
			students.GET("/:id/status", c.student.Status)
			students.POST("/:id/grades/parse", c.student.ParseGrades)
			students.POST("/:id/grades", c.student.ConfirmGrades)
			students.POST("/:id/recommendations", c.recommendation.Generate)
			students.POST("/:id/selection/validate", c.recommendation.ValidateSelection)
		}
	}
}
