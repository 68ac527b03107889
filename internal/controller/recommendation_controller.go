package controller

import (
	"errors"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/service"
	"coursewise_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RecommendationController struct {
	Recommendation *service.RecommendationService
	Analyzer       *service.AnalyzerService
	Rules          *service.RulesService
}

func NewRecommendationController(
	recommendation *service.RecommendationService,
	analyzer *service.AnalyzerService,
	rules *service.RulesService,
) *RecommendationController {
	return &RecommendationController{
		Recommendation: recommendation,
		Analyzer:       analyzer,
		Rules:          rules,
	}
}

type recommendationRequest struct {
	TargetSemester string                `json:"targetSemester" binding:"required"`
	UseLLM         *bool                 `json:"useLlm"`
	Preferences    model.UserPreferences `json:"preferences"`
}

// @Summary تولید پیشنهاد انتخاب واحد
// @Description ترکیب موتور قوانین و مدل زبانی برای پیشنهاد دروس ترم آینده
// @Tags پیشنهاد
// @Accept json
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Param body body recommendationRequest true "recommendation request"
// @Success 200 {object} util.Response
// @Router /api/students/{id}/recommendations [post]
func (c *RecommendationController) Generate(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
		return
	}

	var req recommendationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	useLLM := true
	if req.UseLLM != nil {
		useLLM = *req.UseLLM
	}

	result, err := c.Recommendation.Generate(ctx.Request.Context(), studentID, req.TargetSemester, req.Preferences, useLLM)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrStudentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrCurriculumUnavailable), errors.Is(err, util.ErrOfferingsUnavailable):
			util.ServiceUnavailable(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

type validateSelectionRequest struct {
	TargetSemester string   `json:"targetSemester" binding:"required"`
	CourseCodes    []string `json:"courseCodes" binding:"required"`
}

// @Summary اعتبارسنجی انتخاب واحد
// @Description بررسی یک مجموعه درس در برابر قوانین پیش‌نیاز، سقف واحد و تداخل زمانی
// @Tags پیشنهاد
// @Accept json
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Param body body validateSelectionRequest true "selection to validate"
// @Success 200 {object} util.Response
// @Router /api/students/{id}/selection/validate [post]
func (c *RecommendationController) ValidateSelection(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
		return
	}

	var req validateSelectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	status, err := c.Analyzer.AnalyzeStatus(ctx.Request.Context(), studentID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrStudentNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	offerings, err := c.Rules.CurriculumRepo.OfferingsFor(ctx.Request.Context(), req.TargetSemester)
	if err != nil {
		util.ServiceUnavailable(ctx, util.ErrOfferingsUnavailable.Error())
		return
	}

	validation := c.Rules.ValidateSelection(ctx.Request.Context(), req.CourseCodes, status, offerings)
	util.Success(ctx, validation)
}
