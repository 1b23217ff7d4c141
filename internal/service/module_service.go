package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/logger"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModuleService struct {
	ModuleRepo     *repository.ModuleRepository
	AttachmentRepo *repository.AttachmentRepository
	QuizRepo       *repository.QuizRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Storage        *StorageService
}

func NewModuleService(moduleRepo *repository.ModuleRepository, attachmentRepo *repository.AttachmentRepository, quizRepo *repository.QuizRepository, enrollmentRepo *repository.EnrollmentRepository, storage *StorageService) *ModuleService {
	return &ModuleService{
		ModuleRepo:     moduleRepo,
		AttachmentRepo: attachmentRepo,
		QuizRepo:       quizRepo,
		EnrollmentRepo: enrollmentRepo,
		Storage:        storage,
	}
}

type ModuleRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	AcademicYear string `json:"academicYear"`
	Level        string `json:"level"`
	Semester     int    `json:"semester"`
	TeacherID    uint   `json:"teacherId" binding:"required"`
}

type ModuleUpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	AcademicYear *string `json:"academicYear"`
	Level        *string `json:"level"`
	Semester     *int    `json:"semester"`
	TeacherID    *uint   `json:"teacherId"`
}

func (s *ModuleService) requireOwner(moduleID, userID uint, role model.UserRole) (*model.Module, error) {
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

func (s *ModuleService) CreateModule(adminID uint, req ModuleRequest) (*model.Module, error) {
	module := &model.Module{
		Title:        req.Title,
		Description:  req.Description,
		AcademicYear: req.AcademicYear,
		Level:        req.Level,
		Semester:     req.Semester,
		TeacherID:    req.TeacherID,
		CreatedBy:    adminID,
	}
	if err := s.ModuleRepo.Create(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *ModuleService) UpdateModule(userID uint, role model.UserRole, moduleID uint, req ModuleUpdateRequest) (*model.Module, error) {
	module, err := s.requireOwner(moduleID, userID, role)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		module.Title = *req.Title
	}
	if req.Description != nil {
		module.Description = *req.Description
	}
	if req.AcademicYear != nil {
		module.AcademicYear = *req.AcademicYear
	}
	if req.Level != nil {
		module.Level = *req.Level
	}
	if req.Semester != nil {
		module.Semester = *req.Semester
	}
	if req.TeacherID != nil && role == model.Admin {
		module.TeacherID = *req.TeacherID
	}

	if err := s.ModuleRepo.Update(module); err != nil {
		return nil, err
	}
	return module, nil
}

// DeleteModule 删除聚合根。附件的物理文件逐个删除，单个失败只记日志，
// 不中断剩余清理。
func (s *ModuleService) DeleteModule(userID uint, role model.UserRole, moduleID uint) error {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return err
	}

	attachments, err := s.AttachmentRepo.ListByModule(moduleID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, a := range attachments {
		if err := s.Storage.Delete(ctx, a.Path); err != nil {
			logger.Log.Warn("failed to delete attachment file",
				zap.Uint("attachmentId", a.ID),
				zap.String("path", a.Path),
				zap.Error(err))
		}
	}

	if err := s.AttachmentRepo.DeleteByModule(moduleID); err != nil {
		return err
	}
	if err := s.QuizRepo.DeleteByModule(moduleID); err != nil {
		return err
	}
	if err := s.ModuleRepo.DeleteModuleContent(moduleID); err != nil {
		return err
	}
	return s.ModuleRepo.Delete(moduleID)
}

func (s *ModuleService) ListModules(userID uint, role model.UserRole, page, limit int) ([]model.Module, int64, error) {
	teacherID := uint(0)
	if role == model.Teacher {
		teacherID = userID
	}
	return s.ModuleRepo.List(teacherID, page, limit)
}

// ChapterView 读取视图：附件已过滤掉临时文件
type ChapterView struct {
	model.Chapter
	Attachments []model.Attachment `json:"attachments"`
}

type SyllabusView struct {
	model.Syllabus
	Attachments []model.Attachment `json:"attachments"`
}

type ReferenceView struct {
	model.Reference
	Attachments []model.Attachment `json:"attachments"`
}

type ModuleDetailResponse struct {
	model.Module
	Chapters   []ChapterView   `json:"chapters"`
	Syllabus   *SyllabusView   `json:"syllabus,omitempty"`
	References []ReferenceView `json:"references"`
}

// GetModuleDetail 模块详情。任何读取方（包括负责教师）都看不到临时附件，
// 未保存的上传只在上传响应里出现一次。
func (s *ModuleService) GetModuleDetail(userID uint, role model.UserRole, moduleID uint) (*ModuleDetailResponse, error) {
	module, err := s.ModuleRepo.FindByIDWithContent(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}

	if role == model.Student {
		enrolled, err := s.EnrollmentRepo.Exists(moduleID, userID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	} else if role == model.Teacher && module.TeacherID != userID {
		return nil, util.ErrPermissionDenied
	}

	resp := &ModuleDetailResponse{Module: *module}
	resp.Module.Chapters = nil
	resp.Module.Syllabus = nil
	resp.Module.References = nil

	for _, c := range module.Chapters {
		files, err := s.AttachmentRepo.ListByOwner(model.OwnerChapter, c.ID, false)
		if err != nil {
			return nil, err
		}
		c.Attachments = nil
		resp.Chapters = append(resp.Chapters, ChapterView{Chapter: c, Attachments: files})
	}

	if module.Syllabus != nil {
		files, err := s.AttachmentRepo.ListByOwner(model.OwnerSyllabus, module.Syllabus.ID, false)
		if err != nil {
			return nil, err
		}
		sv := SyllabusView{Syllabus: *module.Syllabus, Attachments: files}
		sv.Syllabus.Attachments = nil
		resp.Syllabus = &sv
	}

	for _, ref := range module.References {
		files, err := s.AttachmentRepo.ListByOwner(model.OwnerReference, ref.ID, false)
		if err != nil {
			return nil, err
		}
		ref.Attachments = nil
		resp.References = append(resp.References, ReferenceView{Reference: ref, Attachments: files})
	}

	return resp, nil
}

// 容器保存请求。Files 为 nil 表示请求未携带文件字段，附件保持不变；
// 非 nil 时列表内附件全部转正，列表外的移出容器。

type ChapterSaveRequest struct {
	Title    string  `json:"title" binding:"required"`
	Content  string  `json:"content"`
	Position *int    `json:"position"`
	Files    *[]uint `json:"files"`
}

type SyllabusSaveRequest struct {
	Content string  `json:"content"`
	Files   *[]uint `json:"files"`
}

type ReferenceSaveRequest struct {
	Title    string  `json:"title" binding:"required"`
	Author   string  `json:"author"`
	Notes    string  `json:"notes"`
	Position *int    `json:"position"`
	Files    *[]uint `json:"files"`
}

func (s *ModuleService) AddChapter(userID uint, role model.UserRole, moduleID uint, req ChapterSaveRequest) (*model.Chapter, error) {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return nil, err
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		existing, err := s.ModuleRepo.ListChapters(moduleID)
		if err != nil {
			return nil, err
		}
		position = len(existing)
	}

	chapter := &model.Chapter{
		ModuleID: moduleID,
		Title:    req.Title,
		Content:  req.Content,
		Position: position,
	}
	if err := s.ModuleRepo.CreateChapter(chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *ModuleService) SaveChapter(userID uint, role model.UserRole, chapterID uint, req ChapterSaveRequest) (*model.Chapter, error) {
	chapter, err := s.ModuleRepo.FindChapterByID(chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.requireOwner(chapter.ModuleID, userID, role); err != nil {
		return nil, err
	}

	chapter.Title = req.Title
	chapter.Content = req.Content
	if req.Position != nil {
		chapter.Position = *req.Position
	}
	if err := s.ModuleRepo.UpdateChapter(chapter); err != nil {
		return nil, err
	}

	if req.Files != nil {
		keep := *req.Files
		if keep == nil {
			keep = []uint{}
		}
		if err := s.AttachmentRepo.PromoteOwnerFiles(model.OwnerChapter, chapter.ID, keep); err != nil {
			return nil, err
		}
	}
	return chapter, nil
}

func (s *ModuleService) DeleteChapter(userID uint, role model.UserRole, chapterID uint) error {
	chapter, err := s.ModuleRepo.FindChapterByID(chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotFound
		}
		return err
	}
	if _, err := s.requireOwner(chapter.ModuleID, userID, role); err != nil {
		return err
	}

	s.deleteOwnerFiles(model.OwnerChapter, chapter.ID)
	return s.ModuleRepo.DeleteChapter(chapterID)
}

func (s *ModuleService) SaveSyllabus(userID uint, role model.UserRole, moduleID uint, req SyllabusSaveRequest) (*model.Syllabus, error) {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return nil, err
	}

	syllabus, err := s.ModuleRepo.FindSyllabusByModule(moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		syllabus = &model.Syllabus{ModuleID: moduleID}
	} else if err != nil {
		return nil, err
	}

	syllabus.Content = req.Content
	if err := s.ModuleRepo.SaveSyllabus(syllabus); err != nil {
		return nil, err
	}

	if req.Files != nil {
		keep := *req.Files
		if keep == nil {
			keep = []uint{}
		}
		if err := s.AttachmentRepo.PromoteOwnerFiles(model.OwnerSyllabus, syllabus.ID, keep); err != nil {
			return nil, err
		}
	}
	return syllabus, nil
}

func (s *ModuleService) AddReference(userID uint, role model.UserRole, moduleID uint, req ReferenceSaveRequest) (*model.Reference, error) {
	if _, err := s.requireOwner(moduleID, userID, role); err != nil {
		return nil, err
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		existing, err := s.ModuleRepo.ListReferences(moduleID)
		if err != nil {
			return nil, err
		}
		position = len(existing)
	}

	ref := &model.Reference{
		ModuleID: moduleID,
		Title:    req.Title,
		Author:   req.Author,
		Notes:    req.Notes,
		Position: position,
	}
	if err := s.ModuleRepo.CreateReference(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *ModuleService) SaveReference(userID uint, role model.UserRole, referenceID uint, req ReferenceSaveRequest) (*model.Reference, error) {
	ref, err := s.ModuleRepo.FindReferenceByID(referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.requireOwner(ref.ModuleID, userID, role); err != nil {
		return nil, err
	}

	ref.Title = req.Title
	ref.Author = req.Author
	ref.Notes = req.Notes
	if req.Position != nil {
		ref.Position = *req.Position
	}
	if err := s.ModuleRepo.UpdateReference(ref); err != nil {
		return nil, err
	}

	if req.Files != nil {
		keep := *req.Files
		if keep == nil {
			keep = []uint{}
		}
		if err := s.AttachmentRepo.PromoteOwnerFiles(model.OwnerReference, ref.ID, keep); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (s *ModuleService) DeleteReference(userID uint, role model.UserRole, referenceID uint) error {
	ref, err := s.ModuleRepo.FindReferenceByID(referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotFound
		}
		return err
	}
	if _, err := s.requireOwner(ref.ModuleID, userID, role); err != nil {
		return err
	}

	s.deleteOwnerFiles(model.OwnerReference, ref.ID)
	return s.ModuleRepo.DeleteReference(referenceID)
}

// deleteOwnerFiles 容器显式删除时清理其附件（含物理文件），尽力而为
func (s *ModuleService) deleteOwnerFiles(ownerType string, ownerID uint) {
	files, err := s.AttachmentRepo.ListByOwner(ownerType, ownerID, true)
	if err != nil {
		logger.Log.Warn("failed to list attachments for cleanup",
			zap.String("ownerType", ownerType), zap.Uint("ownerId", ownerID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, f := range files {
		if err := s.Storage.Delete(ctx, f.Path); err != nil {
			logger.Log.Warn("failed to delete attachment file",
				zap.String("path", f.Path), zap.Error(err))
		}
	}
	if err := s.AttachmentRepo.DeleteByOwner(ownerType, ownerID); err != nil {
		logger.Log.Warn("failed to delete attachment records",
			zap.String("ownerType", ownerType), zap.Uint("ownerId", ownerID), zap.Error(err))
	}
}
