package controller

import (
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AttachmentController struct {
	AttachmentService *service.AttachmentService
}

func NewAttachmentController(attachmentService *service.AttachmentService) *AttachmentController {
	return &AttachmentController{AttachmentService: attachmentService}
}

// Upload godoc
// @Summary 上传附件
// @Description 上传文件到指定容器。上传后为临时状态，保存容器时转正；
// @Description 未携带文件时直接返回成功
// @Tags 附件
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Param   ownerType formData string true "容器类型" Enums(chapter, syllabus, reference)
// @Param   ownerId formData int false "容器ID（大纲可省略）"
// @Param   fileType formData string false "文件类型标签" Enums(pdf, video, document)
// @Param   displayName formData string false "显示名称，缺省用原始文件名"
// @Param   file formData file false "文件"
// @Success 201 {object} util.Response{data=model.Attachment}
// @Failure 400 {object} util.Response "文件过大、内容与声明类型不符或容器不属于该模块"
// @Router /api/modules/{id}/attachments [post]
func (c *AttachmentController) Upload(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	ownerType := ctx.PostForm("ownerType")
	ownerID, _ := strconv.Atoi(ctx.DefaultPostForm("ownerId", "0"))

	file, err := ctx.FormFile("file")
	if err != nil {
		// 不带文件的请求按无操作处理
		file = nil
	}

	claims := util.GetUserFromContext(ctx)
	attachment, err := c.AttachmentService.Upload(ctx.Request.Context(),
		claims.UserID, claims.Role, uint(moduleID), service.UploadInput{
			OwnerType:    ownerType,
			OwnerID:      uint(ownerID),
			DeclaredType: model.FileType(ctx.PostForm("fileType")),
			DisplayName:  ctx.PostForm("displayName"),
			File:         file,
		})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if attachment == nil {
		util.Success(ctx, nil)
		return
	}
	util.Created(ctx, attachment)
}

// PendingUploads godoc
// @Summary 查询未保存的上传
// @Description 返回模块下临时附件数量与最近一次上传的附件ID（来自编辑会话标记）
// @Tags 附件
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=service.PendingUploadState}
// @Router /api/modules/{id}/attachments/pending [get]
func (c *AttachmentController) PendingUploads(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	state, err := c.AttachmentService.PendingUploads(ctx.Request.Context(),
		claims.UserID, claims.Role, uint(moduleID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// DiscardTemporary godoc
// @Summary 放弃未保存的上传
// @Description 清掉模块下全部临时附件，返回清理数量
// @Tags 附件
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/modules/{id}/attachments/temporary [delete]
func (c *AttachmentController) DiscardTemporary(ctx *gin.Context) {
	moduleID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid module id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	count, err := c.AttachmentService.DiscardTemporary(claims.UserID, claims.Role, uint(moduleID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"removed": count})
}
