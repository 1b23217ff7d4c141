package service

import (
	"bytes"
	"context"
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/logger"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type attachmentFixture struct {
	db      *gorm.DB
	cfg     *config.Config
	storage *StorageService
	svc     *AttachmentService
	modules *ModuleService
	teacher model.User
	module  model.Module
	chapter model.Chapter
}

func newAttachmentFixture(t *testing.T) *attachmentFixture {
	t.Helper()
	db := setupTestDB(t)

	cfg := &config.Config{}
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Upload.MaxFileSizeMB = 1
	cfg.Upload.RetentionHours = 24 * time.Hour

	attachmentRepo := repository.NewAttachmentRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	storage := NewStorageService(cfg)

	f := &attachmentFixture{
		db:      db,
		cfg:     cfg,
		storage: storage,
		svc:     NewAttachmentService(attachmentRepo, moduleRepo, storage, nil, cfg),
		modules: NewModuleService(moduleRepo, attachmentRepo,
			repository.NewQuizRepository(db), repository.NewEnrollmentRepository(db), storage),
	}

	f.teacher = model.User{Name: "teacher", Email: "t@example.com", Password: "x", Role: model.Teacher, Approved: true}
	require.NoError(t, db.Create(&f.teacher).Error)

	f.module = model.Module{Title: "Databases", TeacherID: f.teacher.ID}
	require.NoError(t, db.Create(&f.module).Error)

	f.chapter = model.Chapter{ModuleID: f.module.ID, Title: "Indexing"}
	require.NoError(t, db.Create(&f.chapter).Error)

	return f
}

// makeFileHeader 构造真实的 multipart 文件头
func makeFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func (f *attachmentFixture) upload(t *testing.T, ownerType string, ownerID uint, filename string) *model.Attachment {
	t.Helper()
	header := makeFileHeader(t, filename, []byte("content of "+filename))
	a, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		File:      header,
	})
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestUploadCreatesTemporaryAttachment(t *testing.T) {
	f := newAttachmentFixture(t)

	a := f.upload(t, model.OwnerChapter, f.chapter.ID, "notes.pdf")

	assert.True(t, a.Temporary)
	assert.Equal(t, f.module.ID, a.ModuleID)
	assert.Equal(t, model.FilePDF, a.FileType)
	assert.Equal(t, "notes.pdf", a.OriginalName)
	assert.False(t, a.UploadedAt.IsZero())

	// 文件确实落到了本地存储
	_, err := os.Stat(filepath.Join(f.cfg.Storage.LocalPath, a.Path))
	assert.NoError(t, err)
}

func TestUploadHonorsDeclaredTypeAndDisplayName(t *testing.T) {
	f := newAttachmentFixture(t)

	header := makeFileHeader(t, "lecture.bin", []byte("binary"))
	a, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType:    model.OwnerChapter,
		OwnerID:      f.chapter.ID,
		DeclaredType: model.FileDocument,
		DisplayName:  "Lecture notes week 3",
		File:         header,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FileDocument, a.FileType)
	assert.Equal(t, "Lecture notes week 3", a.OriginalName)
}

func TestUploadValidatesDeclaredTypeAgainstContent(t *testing.T) {
	f := newAttachmentFixture(t)

	// 声明 pdf 但内容不是 PDF
	fake := makeFileHeader(t, "report.pdf", []byte("just plain text"))
	_, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType:    model.OwnerChapter,
		OwnerID:      f.chapter.ID,
		DeclaredType: model.FilePDF,
		File:         fake,
	})
	assert.ErrorIs(t, err, util.ErrFileTypeMismatch)

	genuine := makeFileHeader(t, "report.pdf", []byte("%PDF-1.4\n1 0 obj\n"))
	a, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType:    model.OwnerChapter,
		OwnerID:      f.chapter.ID,
		DeclaredType: model.FilePDF,
		File:         genuine,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FilePDF, a.FileType)

	// 校验通过后文件完整落盘，不能只剩被嗅探消耗后的残余
	data, err := os.ReadFile(filepath.Join(f.cfg.Storage.LocalPath, a.Path))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4\n1 0 obj\n"), data)
}

func TestUploadNilFileIsNoOp(t *testing.T) {
	f := newAttachmentFixture(t)

	a, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: model.OwnerChapter,
		OwnerID:   f.chapter.ID,
	})
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestUploadRejectsOversizeAndForeignContainers(t *testing.T) {
	f := newAttachmentFixture(t)

	big := makeFileHeader(t, "big.bin", bytes.Repeat([]byte("a"), 2<<20))
	_, err := f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: model.OwnerChapter,
		OwnerID:   f.chapter.ID,
		File:      big,
	})
	assert.ErrorIs(t, err, util.ErrFileTooLarge)

	// 别的模块的章节不能当目标容器
	otherModule := model.Module{Title: "Other", TeacherID: f.teacher.ID}
	require.NoError(t, f.db.Create(&otherModule).Error)
	foreignChapter := model.Chapter{ModuleID: otherModule.ID, Title: "Foreign"}
	require.NoError(t, f.db.Create(&foreignChapter).Error)

	header := makeFileHeader(t, "x.pdf", []byte("x"))
	_, err = f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: model.OwnerChapter,
		OwnerID:   foreignChapter.ID,
		File:      header,
	})
	assert.ErrorIs(t, err, util.ErrInvalidContainer)

	_, err = f.svc.Upload(context.Background(), f.teacher.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: "bogus",
		OwnerID:   1,
		File:      header,
	})
	assert.ErrorIs(t, err, util.ErrInvalidContainer)
}

func TestUploadRequiresModuleOwnership(t *testing.T) {
	f := newAttachmentFixture(t)

	intruder := model.User{Name: "intruder", Email: "i@example.com", Password: "x", Role: model.Teacher}
	require.NoError(t, f.db.Create(&intruder).Error)

	header := makeFileHeader(t, "x.pdf", []byte("x"))
	_, err := f.svc.Upload(context.Background(), intruder.ID, model.Teacher, f.module.ID, UploadInput{
		OwnerType: model.OwnerChapter,
		OwnerID:   f.chapter.ID,
		File:      header,
	})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestUploadAutoCreatesSyllabus(t *testing.T) {
	f := newAttachmentFixture(t)

	a := f.upload(t, model.OwnerSyllabus, 0, "outline.pdf")

	var syllabus model.Syllabus
	require.NoError(t, f.db.Where("module_id = ?", f.module.ID).First(&syllabus).Error)
	assert.Equal(t, syllabus.ID, a.OwnerID)
}

func TestSaveChapterPromotesListedFiles(t *testing.T) {
	f := newAttachmentFixture(t)

	kept := f.upload(t, model.OwnerChapter, f.chapter.ID, "kept.pdf")
	dropped := f.upload(t, model.OwnerChapter, f.chapter.ID, "dropped.pdf")

	files := []uint{kept.ID}
	_, err := f.modules.SaveChapter(f.teacher.ID, model.Teacher, f.chapter.ID, ChapterSaveRequest{
		Title: "Indexing",
		Files: &files,
	})
	require.NoError(t, err)

	remaining, err := f.svc.AttachmentRepo.ListByOwner(model.OwnerChapter, f.chapter.ID, true)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
	assert.False(t, remaining[0].Temporary)

	var count int64
	f.db.Model(&model.Attachment{}).Where("id = ?", dropped.ID).Count(&count)
	assert.Zero(t, count)
}

func TestSaveChapterWithoutFilesFieldPreservesAttachments(t *testing.T) {
	f := newAttachmentFixture(t)

	a := f.upload(t, model.OwnerChapter, f.chapter.ID, "pending.pdf")

	_, err := f.modules.SaveChapter(f.teacher.ID, model.Teacher, f.chapter.ID, ChapterSaveRequest{
		Title: "Indexing, revised",
	})
	require.NoError(t, err)

	remaining, err := f.svc.AttachmentRepo.ListByOwner(model.OwnerChapter, f.chapter.ID, true)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, a.ID, remaining[0].ID)
	// files 字段缺席时附件既不转正也不移除
	assert.True(t, remaining[0].Temporary)
}

func TestSaveChapterWithEmptyFilesClearsAttachments(t *testing.T) {
	f := newAttachmentFixture(t)

	f.upload(t, model.OwnerChapter, f.chapter.ID, "a.pdf")
	f.upload(t, model.OwnerChapter, f.chapter.ID, "b.pdf")

	files := []uint{}
	_, err := f.modules.SaveChapter(f.teacher.ID, model.Teacher, f.chapter.ID, ChapterSaveRequest{
		Title: "Indexing",
		Files: &files,
	})
	require.NoError(t, err)

	remaining, err := f.svc.AttachmentRepo.ListByOwner(model.OwnerChapter, f.chapter.ID, true)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestModuleDetailHidesTemporaryAttachments(t *testing.T) {
	f := newAttachmentFixture(t)

	saved := f.upload(t, model.OwnerChapter, f.chapter.ID, "saved.pdf")
	files := []uint{saved.ID}
	_, err := f.modules.SaveChapter(f.teacher.ID, model.Teacher, f.chapter.ID, ChapterSaveRequest{
		Title: "Indexing",
		Files: &files,
	})
	require.NoError(t, err)

	// 再传一个但不保存
	f.upload(t, model.OwnerChapter, f.chapter.ID, "unsaved.pdf")

	detail, err := f.modules.GetModuleDetail(f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)
	require.Len(t, detail.Chapters, 1)
	require.Len(t, detail.Chapters[0].Attachments, 1)
	assert.Equal(t, saved.ID, detail.Chapters[0].Attachments[0].ID)
}

func TestPendingUploadsReportsUnsavedCount(t *testing.T) {
	f := newAttachmentFixture(t)

	state, err := f.svc.PendingUploads(context.Background(), f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)
	assert.Zero(t, state.Count)

	f.upload(t, model.OwnerChapter, f.chapter.ID, "a.pdf")
	f.upload(t, model.OwnerChapter, f.chapter.ID, "b.pdf")

	state, err = f.svc.PendingUploads(context.Background(), f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, state.Count)
	// redis 未接入时没有会话标记
	assert.Zero(t, state.LastUploadID)

	_, err = f.svc.DiscardTemporary(f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)

	state, err = f.svc.PendingUploads(context.Background(), f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)
	assert.Zero(t, state.Count)
}

func TestDiscardTemporary(t *testing.T) {
	f := newAttachmentFixture(t)

	promoted := f.upload(t, model.OwnerChapter, f.chapter.ID, "keep.pdf")
	files := []uint{promoted.ID}
	_, err := f.modules.SaveChapter(f.teacher.ID, model.Teacher, f.chapter.ID, ChapterSaveRequest{
		Title: "Indexing",
		Files: &files,
	})
	require.NoError(t, err)

	f.upload(t, model.OwnerChapter, f.chapter.ID, "stale1.pdf")
	f.upload(t, model.OwnerChapter, f.chapter.ID, "stale2.pdf")

	count, err := f.svc.DiscardTemporary(f.teacher.ID, model.Teacher, f.module.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	remaining, err := f.svc.AttachmentRepo.ListByOwner(model.OwnerChapter, f.chapter.ID, true)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, promoted.ID, remaining[0].ID)
}
