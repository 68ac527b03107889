package controller

import (
	"coursewise_backend/internal/service"
	"coursewise_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB  *gorm.DB
	LLM service.LLMClient
}

func NewHealthController(db *gorm.DB, llm service.LLMClient) *HealthController {
	return &HealthController{DB: db, LLM: llm}
}

// @Summary 健康检查
// @Description 检查服务状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.ServiceUnavailable(ctx, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
		},
	})
}

// @Summary 检查上游LLM服务
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health/llm [get]
func (c *HealthController) LLMHealthCheck(ctx *gin.Context) {
	if err := c.LLM.HealthCheck(ctx.Request.Context()); err != nil {
		util.ServiceUnavailable(ctx, util.ErrLLMUnavailable.Error())
		return
	}
	util.Success(ctx, gin.H{"llm": "up"})
}
