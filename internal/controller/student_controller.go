package controller

import (
	"errors"
	"strconv"

	"coursewise_backend/internal/service"
	"coursewise_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StudentController struct {
	StudentService *service.StudentService
	Analyzer       *service.AnalyzerService
}

func NewStudentController(studentService *service.StudentService, analyzer *service.AnalyzerService) *StudentController {
	return &StudentController{StudentService: studentService, Analyzer: analyzer}
}

// @Summary ثبت‌نام دانشجو
// @Tags دانشجو
// @Accept json
// @Produce json
// @Param body body service.RegisterStudentInput true "student info"
// @Success 201 {object} util.Response
// @Router /api/students [post]
func (c *StudentController) Register(ctx *gin.Context) {
	var input service.RegisterStudentInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	student, err := c.StudentService.Register(input)
	if err != nil {
		if errors.Is(err, util.ErrStudentExists) {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, student)
}

// @Summary دریافت اطلاعات دانشجو
// @Tags دانشجو
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Success 200 {object} util.Response
// @Router /api/students/{id} [get]
func (c *StudentController) Get(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
		return
	}

	student, err := c.StudentService.Get(studentID)
	if err != nil {
		if errors.Is(err, util.ErrStudentNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, student)
}

// @Summary تحلیل وضعیت تحصیلی دانشجو
// @Description محاسبه معدل، واحدهای گذرانده، وضعیت مشروطی و پیشرفت تحصیلی از تاریخچه نمرات
// @Tags دانشجو
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Success 200 {object} util.Response
// @Router /api/students/{id}/status [get]
func (c *StudentController) Status(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
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
	util.Success(ctx, status)
}

// @Summary استخراج نمرات از متن
// @Description متن نمرات وارد شده توسط دانشجو را به ساختار قابل تایید تبدیل می‌کند
// @Tags دانشجو
// @Accept json
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Param body body object true "{text}"
// @Success 200 {object} util.Response
// @Router /api/students/{id}/grades/parse [post]
func (c *StudentController) ParseGrades(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, confirmation, err := c.StudentService.ParseGrades(ctx.Request.Context(), studentID, body.Text)
	if err != nil {
		if errors.Is(err, util.ErrStudentNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"result":       result,
		"confirmation": confirmation,
	})
}

// @Summary ثبت نمرات تایید شده
// @Tags دانشجو
// @Accept json
// @Produce json
// @Param id path int true "شناسه دانشجو"
// @Param body body object true "{grades: []}"
// @Success 201 {object} util.Response
// @Router /api/students/{id}/grades [post]
func (c *StudentController) ConfirmGrades(ctx *gin.Context) {
	studentID, ok := studentIDParam(ctx)
	if !ok {
		return
	}

	var body struct {
		Grades []service.GradeEntry `json:"grades" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	saved, err := c.StudentService.ConfirmGrades(studentID, body.Grades)
	if err != nil {
		if errors.Is(err, util.ErrStudentNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"saved": saved})
}

func studentIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		util.BadRequest(ctx, "invalid student id")
		return 0, false
	}
	return uint(id), true
}
