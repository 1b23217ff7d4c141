package controller

import (
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ModuleController struct {
	ModuleService *service.ModuleService
}

func NewModuleController(moduleService *service.ModuleService) *ModuleController {
	return &ModuleController{ModuleService: moduleService}
}

// CreateModule godoc
// @Summary 创建模块
// @Description 管理员创建模块并指派负责教师
// @Tags 模块
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.ModuleRequest true "模块信息"
// @Success 201 {object} util.Response{data=model.Module}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/modules [post]
func (c *ModuleController) CreateModule(ctx *gin.Context) {
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	module, err := c.ModuleService.CreateModule(claims.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// ListModules godoc
// @Summary 模块列表
// @Description 教师看到自己负责的模块，管理员看到全部
// @Tags 模块
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/modules [get]
func (c *ModuleController) ListModules(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	claims := util.GetUserFromContext(ctx)
	modules, total, err := c.ModuleService.ListModules(claims.UserID, claims.Role, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: modules, Total: total, Page: page, Limit: limit})
}

// GetModule godoc
// @Summary 模块详情
// @Description 返回模块及章节、大纲、参考资料和已保存的附件
// @Tags 模块
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=service.ModuleDetailResponse}
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{id} [get]
func (c *ModuleController) GetModule(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	detail, err := c.ModuleService.GetModuleDetail(claims.UserID, claims.Role, uint(id))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateModule godoc
// @Summary 更新模块
// @Tags 模块
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.ModuleUpdateRequest true "更新字段"
// @Success 200 {object} util.Response{data=model.Module}
// @Router /api/modules/{id} [put]
func (c *ModuleController) UpdateModule(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.ModuleUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	module, err := c.ModuleService.UpdateModule(claims.UserID, claims.Role, uint(id), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

// DeleteModule godoc
// @Summary 删除模块
// @Description 级联删除章节、大纲、参考资料、附件、测验及提交
// @Tags 模块
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id} [delete]
func (c *ModuleController) DeleteModule(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.ModuleService.DeleteModule(claims.UserID, claims.Role, uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddChapter godoc
// @Summary 新增章节
// @Tags 模块内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.ChapterSaveRequest true "章节内容"
// @Success 201 {object} util.Response{data=model.Chapter}
// @Router /api/modules/{id}/chapters [post]
func (c *ModuleController) AddChapter(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.ChapterSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	chapter, err := c.ModuleService.AddChapter(claims.UserID, claims.Role, uint(moduleID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, chapter)
}

// SaveChapter godoc
// @Summary 保存章节
// @Description 保存章节内容。files 字段列出的附件转正，未列出的移出章节；
// @Description 请求不带 files 字段时附件保持不变
// @Tags 模块内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Param   body body service.ChapterSaveRequest true "章节内容"
// @Success 200 {object} util.Response{data=model.Chapter}
// @Router /api/chapters/{id} [put]
func (c *ModuleController) SaveChapter(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	var req service.ChapterSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	chapter, err := c.ModuleService.SaveChapter(claims.UserID, claims.Role, uint(id), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, chapter)
}

// DeleteChapter godoc
// @Summary 删除章节
// @Tags 模块内容
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/chapters/{id} [delete]
func (c *ModuleController) DeleteChapter(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.ModuleService.DeleteChapter(claims.UserID, claims.Role, uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SaveSyllabus godoc
// @Summary 保存大纲
// @Description 大纲是模块的单例容器，不存在时自动创建
// @Tags 模块内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.SyllabusSaveRequest true "大纲内容"
// @Success 200 {object} util.Response{data=model.Syllabus}
// @Router /api/modules/{id}/syllabus [put]
func (c *ModuleController) SaveSyllabus(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.SyllabusSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	syllabus, err := c.ModuleService.SaveSyllabus(claims.UserID, claims.Role, uint(moduleID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, syllabus)
}

// AddReference godoc
// @Summary 新增参考资料
// @Tags 模块内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   body body service.ReferenceSaveRequest true "参考资料"
// @Success 201 {object} util.Response{data=model.Reference}
// @Router /api/modules/{id}/references [post]
func (c *ModuleController) AddReference(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	var req service.ReferenceSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	ref, err := c.ModuleService.AddReference(claims.UserID, claims.Role, uint(moduleID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, ref)
}

// SaveReference godoc
// @Summary 保存参考资料
// @Tags 模块内容
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "参考资料ID"
// @Param   body body service.ReferenceSaveRequest true "参考资料"
// @Success 200 {object} util.Response{data=model.Reference}
// @Router /api/references/{id} [put]
func (c *ModuleController) SaveReference(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid reference id")
		return
	}

	var req service.ReferenceSaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	ref, err := c.ModuleService.SaveReference(claims.UserID, claims.Role, uint(id), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, ref)
}

// DeleteReference godoc
// @Summary 删除参考资料
// @Tags 模块内容
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "参考资料ID"
// @Success 200 {object} util.Response
// @Router /api/references/{id} [delete]
func (c *ModuleController) DeleteReference(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid reference id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.ModuleService.DeleteReference(claims.UserID, claims.Role, uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
