package repository

import (
	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) Create(m *model.Module) error {
	return r.DB.Create(m).Error
}

func (r *ModuleRepository) FindByID(id uint) (*model.Module, error) {
	var m model.Module
	err := r.DB.First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByIDWithContent 加载模块及其全部容器。附件单独查询，
// 读取侧要过滤临时文件，不在这里 Preload。
func (r *ModuleRepository) FindByIDWithContent(id uint) (*model.Module, error) {
	var m model.Module
	err := r.DB.
		Preload("Chapters", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Syllabus").
		Preload("References", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ModuleRepository) List(teacherID uint, page, limit int) ([]model.Module, int64, error) {
	var ms []model.Module
	var total int64
	query := r.DB.Model(&model.Module{})
	if teacherID > 0 {
		query = query.Where("teacher_id = ?", teacherID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ms).Error
	return ms, total, err
}

func (r *ModuleRepository) Update(m *model.Module) error {
	return r.DB.Save(m).Error
}

func (r *ModuleRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Module{}, id).Error
}

// 章节

func (r *ModuleRepository) CreateChapter(c *model.Chapter) error {
	return r.DB.Create(c).Error
}

func (r *ModuleRepository) FindChapterByID(id uint) (*model.Chapter, error) {
	var c model.Chapter
	err := r.DB.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ModuleRepository) UpdateChapter(c *model.Chapter) error {
	return r.DB.Save(c).Error
}

func (r *ModuleRepository) DeleteChapter(id uint) error {
	return r.DB.Delete(&model.Chapter{}, id).Error
}

func (r *ModuleRepository) ListChapters(moduleID uint) ([]model.Chapter, error) {
	var cs []model.Chapter
	err := r.DB.Where("module_id = ?", moduleID).Order("position asc").Find(&cs).Error
	return cs, err
}

// 大纲

func (r *ModuleRepository) FindSyllabusByModule(moduleID uint) (*model.Syllabus, error) {
	var s model.Syllabus
	err := r.DB.Where("module_id = ?", moduleID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ModuleRepository) SaveSyllabus(s *model.Syllabus) error {
	return r.DB.Save(s).Error
}

// 参考资料

func (r *ModuleRepository) CreateReference(ref *model.Reference) error {
	return r.DB.Create(ref).Error
}

func (r *ModuleRepository) FindReferenceByID(id uint) (*model.Reference, error) {
	var ref model.Reference
	err := r.DB.First(&ref, id).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ModuleRepository) UpdateReference(ref *model.Reference) error {
	return r.DB.Save(ref).Error
}

func (r *ModuleRepository) DeleteReference(id uint) error {
	return r.DB.Delete(&model.Reference{}, id).Error
}

func (r *ModuleRepository) ListReferences(moduleID uint) ([]model.Reference, error) {
	var refs []model.Reference
	err := r.DB.Where("module_id = ?", moduleID).Order("position asc").Find(&refs).Error
	return refs, err
}

// DeleteModuleContent 删除模块下的章节/大纲/参考资料/选课记录
func (r *ModuleRepository) DeleteModuleContent(moduleID uint) error {
	if err := r.DB.Where("module_id = ?", moduleID).Delete(&model.Chapter{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("module_id = ?", moduleID).Delete(&model.Syllabus{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("module_id = ?", moduleID).Delete(&model.Reference{}).Error; err != nil {
		return err
	}
	return r.DB.Where("module_id = ?", moduleID).Delete(&model.Enrollment{}).Error
}
