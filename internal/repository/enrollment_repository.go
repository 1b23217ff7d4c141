package repository

import (
	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(e *model.Enrollment) error {
	return r.DB.Create(e).Error
}

func (r *EnrollmentRepository) Exists(moduleID, studentID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("module_id = ? AND student_id = ?", moduleID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) ListByStudent(studentID uint) ([]model.Enrollment, error) {
	var es []model.Enrollment
	err := r.DB.Preload("Module").Where("student_id = ?", studentID).Find(&es).Error
	return es, err
}

func (r *EnrollmentRepository) ListByModule(moduleID uint) ([]model.Enrollment, error) {
	var es []model.Enrollment
	err := r.DB.Preload("Student").Where("module_id = ?", moduleID).Find(&es).Error
	return es, err
}

// Delete 物理删除，软删除的残留行会占住 (module, student) 唯一索引，
// 导致退课后无法重新选课
func (r *EnrollmentRepository) Delete(moduleID, studentID uint) error {
	return r.DB.Unscoped().Where("module_id = ? AND student_id = ?", moduleID, studentID).
		Delete(&model.Enrollment{}).Error
}
