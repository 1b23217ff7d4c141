package service

import (
	"context"
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/logger"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AttachmentService struct {
	AttachmentRepo *repository.AttachmentRepository
	ModuleRepo     *repository.ModuleRepository
	Storage        *StorageService
	Redis          *redis.Client
	Cfg            *config.Config
}

func NewAttachmentService(attachmentRepo *repository.AttachmentRepository, moduleRepo *repository.ModuleRepository, storage *StorageService, rdb *redis.Client, cfg *config.Config) *AttachmentService {
	return &AttachmentService{
		AttachmentRepo: attachmentRepo,
		ModuleRepo:     moduleRepo,
		Storage:        storage,
		Redis:          rdb,
		Cfg:            cfg,
	}
}

func (s *AttachmentService) requireOwner(moduleID, userID uint, role model.UserRole) (*model.Module, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if role != model.Admin && module.TeacherID != userID {
		return nil, util.ErrPermissionDenied
	}
	return module, nil
}

// resolveOwner 校验目标容器属于该模块。大纲容器在首次上传时自动创建。
func (s *AttachmentService) resolveOwner(moduleID uint, ownerType string, ownerID uint) (uint, error) {
	switch ownerType {
	case model.OwnerChapter:
		chapter, err := s.ModuleRepo.FindChapterByID(ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, util.ErrInvalidContainer
			}
			return 0, err
		}
		if chapter.ModuleID != moduleID {
			return 0, util.ErrInvalidContainer
		}
		return chapter.ID, nil
	case model.OwnerSyllabus:
		syllabus, err := s.ModuleRepo.FindSyllabusByModule(moduleID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			syllabus = &model.Syllabus{ModuleID: moduleID}
			if err := s.ModuleRepo.SaveSyllabus(syllabus); err != nil {
				return 0, err
			}
		} else if err != nil {
			return 0, err
		}
		return syllabus.ID, nil
	case model.OwnerReference:
		ref, err := s.ModuleRepo.FindReferenceByID(ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, util.ErrInvalidContainer
			}
			return 0, err
		}
		if ref.ModuleID != moduleID {
			return 0, util.ErrInvalidContainer
		}
		return ref.ID, nil
	default:
		return 0, util.ErrInvalidContainer
	}
}

// sniffTargets 返回声明类型对应的内容校验白名单。document 是兜底类型，
// 不做内容校验。
func sniffTargets(declared model.FileType) []string {
	switch declared {
	case model.FilePDF:
		return []string{util.MimePDF}
	case model.FileVideo:
		// mkv 等容器 http.DetectContentType 识别不出来，放行 octet-stream
		return []string{util.MimeVideo, "application/x-mpegURL", util.MimeOctetStream}
	default:
		return nil
	}
}

func classifyFile(filename, contentType string) model.FileType {
	ext := strings.ToLower(filepath.Ext(filename))
	if util.IsVideo(contentType) {
		return model.FileVideo
	}
	for _, v := range util.AllowedVideoExtensions {
		if ext == v {
			return model.FileVideo
		}
	}
	if ext == ".pdf" || contentType == util.MimePDF {
		return model.FilePDF
	}
	return model.FileDocument
}

// UploadInput 上传参数。DeclaredType 和 DisplayName 可选，
// 缺省时按文件内容推断类型、用原始文件名。
type UploadInput struct {
	OwnerType    string
	OwnerID      uint
	DeclaredType model.FileType
	DisplayName  string
	File         *multipart.FileHeader
}

// Upload 上传附件到容器。上传的文件先标记为临时，保存容器时才转正，
// 保存前对所有读取方不可见。file 为 nil 直接返回成功。
func (s *AttachmentService) Upload(ctx context.Context, userID uint, role model.UserRole, moduleID uint, in UploadInput) (*model.Attachment, error) {
	ownerType, ownerID, file := in.OwnerType, in.OwnerID, in.File
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	maxSize := int64(s.Cfg.Upload.MaxFileSizeMB) << 20
	if file.Size > maxSize {
		return nil, util.ErrFileTooLarge
	}

	resolvedOwnerID, err := s.resolveOwner(moduleID, ownerType, ownerID)
	if err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}

	// 声明了具体类型时按文件头做内容校验，防止扩展名伪装
	if allowed := sniffTargets(in.DeclaredType); len(allowed) > 0 {
		_, sniffErr := util.ValidateMimeType(src, allowed)
		src.Close()
		if sniffErr != nil {
			return nil, util.ErrFileTypeMismatch
		}
		// 校验消耗了文件头，重新打开再上传
		if src, err = file.Open(); err != nil {
			return nil, err
		}
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}

	ext := filepath.Ext(file.Filename)
	filename := fmt.Sprintf("modules/%d/%s/%d_%s%s",
		moduleID, ownerType, time.Now().UnixNano(), model.GenerateUUID(), ext)

	if _, err := s.Storage.Upload(ctx, filename, src, file.Size, contentType); err != nil {
		return nil, err
	}

	fileType := in.DeclaredType
	switch fileType {
	case model.FilePDF, model.FileVideo, model.FileDocument:
	default:
		fileType = classifyFile(file.Filename, contentType)
	}
	displayName := in.DisplayName
	if displayName == "" {
		displayName = file.Filename
	}

	attachment := &model.Attachment{
		ModuleID:     moduleID,
		OwnerType:    ownerType,
		OwnerID:      resolvedOwnerID,
		Path:         filename,
		FileType:     fileType,
		OriginalName: displayName,
		Size:         file.Size,
		Temporary:    true,
		UploadedAt:   time.Now(),
	}

	// 视频文件探测时长，失败只记日志不影响上传
	if attachment.FileType == model.FileVideo {
		if localPath, ok := s.Storage.LocalPath(filename); ok {
			if info, err := util.GetVideoInfo(localPath); err == nil {
				attachment.Duration = info.Duration
			} else {
				logger.Log.Warn("failed to probe video duration",
					zap.String("path", filename), zap.Error(err))
			}
		}
	}

	if err := s.AttachmentRepo.Create(attachment); err != nil {
		// 记录写不进去时清掉已上传的文件，避免孤儿
		if delErr := s.Storage.Delete(ctx, filename); delErr != nil {
			logger.Log.Warn("failed to clean up orphan file",
				zap.String("path", filename), zap.Error(delErr))
		}
		return nil, err
	}

	// 编辑会话标记，方便排查哪个模块有未保存的上传。尽力而为。
	if s.Redis != nil {
		key := fmt.Sprintf("attachment_upload:%d", moduleID)
		if err := s.Redis.Set(ctx, key, attachment.ID, s.Cfg.Upload.RetentionHours).Err(); err != nil {
			logger.Log.Debug("failed to set pending upload marker", zap.Error(err))
		}
	}

	return attachment, nil
}

// DiscardTemporary 放弃模块下全部未保存的上传，返回清掉的条数
func (s *AttachmentService) DiscardTemporary(userID uint, role model.UserRole, moduleID uint) (int64, error) {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return 0, err
	}
	count, err := s.AttachmentRepo.DeleteTemporaryByModule(moduleID)
	if err != nil {
		return 0, err
	}
	if s.Redis != nil && count > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		key := fmt.Sprintf("attachment_upload:%d", moduleID)
		if err := s.Redis.Del(ctx, key).Err(); err != nil {
			logger.Log.Debug("failed to clear pending upload marker", zap.Error(err))
		}
	}
	return count, nil
}

// PendingUploadState 模块下未保存上传的状态。LastUploadID 取自 redis
// 编辑会话标记，redis 不可用或标记过期时为 0。
type PendingUploadState struct {
	Count        int64 `json:"count"`
	LastUploadID uint  `json:"lastUploadId,omitempty"`
}

// PendingUploads 查询模块是否有未保存的上传，供前端在编辑会话恢复时提示
func (s *AttachmentService) PendingUploads(ctx context.Context, userID uint, role model.UserRole, moduleID uint) (*PendingUploadState, error) {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return nil, err
	}

	count, err := s.AttachmentRepo.CountTemporaryByModule(moduleID)
	if err != nil {
		return nil, err
	}

	state := &PendingUploadState{Count: count}
	if s.Redis != nil {
		key := fmt.Sprintf("attachment_upload:%d", moduleID)
		if id, err := s.Redis.Get(ctx, key).Uint64(); err == nil {
			state.LastUploadID = uint(id)
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.Debug("failed to read pending upload marker", zap.Error(err))
		}
	}
	return state, nil
}
