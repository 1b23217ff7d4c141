package controller

import (
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 模块负责教师创建测验，默认不发布
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.QuizRequest true "测验内容"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 403 {object} util.Response "无权限"
// @Router /api/modules/{id}/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.QuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	quiz, err := c.QuizService.CreateQuiz(claims.UserID, claims.Role, uint(moduleID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 更新测验
// @Description 部分更新。携带 questions 字段时整体替换题目
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Param   body body service.QuizUpdateRequest true "更新字段"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req service.QuizUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	quiz, err := c.QuizService.UpdateQuiz(claims.UserID, claims.Role, uint(quizID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Description 级联删除全部提交
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.QuizService.DeleteQuiz(claims.UserID, claims.Role, uint(quizID)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetQuiz godoc
// @Summary 测验详情（教师）
// @Description 含题目、选项及正确答案标记
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	quiz, err := c.QuizService.GetQuizForTeacher(claims.UserID, claims.Role, uint(quizID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// ListQuizzes godoc
// @Summary 模块测验列表（教师）
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=[]model.Quiz}
// @Router /api/modules/{id}/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	quizzes, err := c.QuizService.ListQuizzesForTeacher(claims.UserID, claims.Role, uint(moduleID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// ListStudentQuizzes godoc
// @Summary 模块测验列表（学生）
// @Description 只返回已发布的测验，附带本人提交状态
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "未选该模块"
// @Router /api/modules/{id}/quizzes/available [get]
func (c *QuizController) ListStudentQuizzes(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	quizzes, message, err := c.QuizService.ListQuizzesForStudent(claims.UserID, uint(moduleID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"quizzes": quizzes, "message": message})
}

// GetStudentQuiz godoc
// @Summary 测验详情（学生）
// @Description 答题视图，不含正确答案标记
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.StudentQuizDetail}
// @Failure 404 {object} util.Response "测验不存在或未发布"
// @Router /api/quizzes/{id}/take [get]
func (c *QuizController) GetStudentQuiz(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	detail, err := c.QuizService.GetQuizForStudent(claims.UserID, uint(quizID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Description 客观题自动判分。重做覆盖原提交并重新判分
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Param   body body service.QuizSubmissionRequest true "答案"
// @Success 200 {object} util.Response{data=service.QuizSubmissionResult}
// @Failure 400 {object} util.Response "测验未发布或已截止"
// @Router /api/quizzes/{id}/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req service.QuizSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.QuizService.SubmitQuiz(claims.UserID, uint(quizID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetMySubmission godoc
// @Summary 查看本人提交
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.QuizSubmission}
// @Failure 404 {object} util.Response "提交不存在"
// @Router /api/submissions/{id} [get]
func (c *QuizController) GetMySubmission(ctx *gin.Context) {
	submissionID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid submission id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	submission, err := c.QuizService.GetSubmissionForStudent(claims.UserID, uint(submissionID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// ListSubmissions godoc
// @Summary 测验提交列表（教师）
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizSubmission}
// @Router /api/quizzes/{id}/submissions [get]
func (c *QuizController) ListSubmissions(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	submissions, err := c.QuizService.ListSubmissions(claims.UserID, claims.Role, uint(quizID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, submissions)
}

// GradeSubmission godoc
// @Summary 人工评分
// @Description 教师为含简答题的提交补充评分与反馈
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "提交ID"
// @Param   body body service.GradeSubmissionRequest true "评分"
// @Success 200 {object} util.Response{data=model.QuizSubmission}
// @Failure 400 {object} util.Response "分数越界"
// @Router /api/submissions/{id}/grade [post]
func (c *QuizController) GradeSubmission(ctx *gin.Context) {
	submissionID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid submission id")
		return
	}

	var req service.GradeSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	submission, err := c.QuizService.GradeSubmission(claims.UserID, claims.Role, uint(submissionID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}
