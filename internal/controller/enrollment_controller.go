package controller

import (
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 学生选课
// @Description 管理员或模块负责教师把学生加入模块
// @Tags 选课
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.EnrollRequest true "学生ID"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 400 {object} util.Response "已选过该模块"
// @Router /api/modules/{id}/enrollments [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, claims.Role, uint(moduleID), req.StudentID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// Unenroll godoc
// @Summary 退课
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   studentId path int true "学生ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id}/enrollments/{studentId} [delete]
func (c *EnrollmentController) Unenroll(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}
	studentID, err := strconv.Atoi(ctx.Param("studentId"))
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.EnrollmentService.Unenroll(claims.UserID, claims.Role, uint(moduleID), uint(studentID)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MyModules godoc
// @Summary 我的模块
// @Description 学生查看自己已选的模块列表
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Module}
// @Router /api/my/modules [get]
func (c *EnrollmentController) MyModules(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	modules, err := c.EnrollmentService.ListMyModules(claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// ListStudents godoc
// @Summary 模块选课名单
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=[]service.EnrolledStudent}
// @Router /api/modules/{id}/enrollments [get]
func (c *EnrollmentController) ListStudents(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	students, err := c.EnrollmentService.ListModuleStudents(claims.UserID, claims.Role, uint(moduleID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, students)
}
