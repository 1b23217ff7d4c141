package service

import (
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	ModuleRepo     *repository.ModuleRepository
	UserRepo       *repository.UserRepository
}

func NewEnrollmentService(enrollmentRepo *repository.EnrollmentRepository, moduleRepo *repository.ModuleRepository, userRepo *repository.UserRepository) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		ModuleRepo:     moduleRepo,
		UserRepo:       userRepo,
	}
}

type EnrollRequest struct {
	StudentID uint `json:"studentId" binding:"required"`
}

// Enroll 选课由管理员或模块负责教师操作
func (s *EnrollmentService) Enroll(operatorID uint, role model.UserRole, moduleID, studentID uint) (*model.Enrollment, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if role != model.Admin && module.TeacherID != operatorID {
		return nil, util.ErrPermissionDenied
	}

	student, err := s.UserRepo.FindByID(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if student.Role != model.Student {
		return nil, util.ErrNotFound
	}

	exists, err := s.EnrollmentRepo.Exists(moduleID, studentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrAlreadyEnrolled
	}

	enrollment := &model.Enrollment{
		ModuleID:  moduleID,
		StudentID: studentID,
	}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) Unenroll(operatorID uint, role model.UserRole, moduleID, studentID uint) error {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotFound
		}
		return err
	}
	if role != model.Admin && module.TeacherID != operatorID {
		return util.ErrPermissionDenied
	}

	exists, err := s.EnrollmentRepo.Exists(moduleID, studentID)
	if err != nil {
		return err
	}
	if !exists {
		return util.ErrNotFound
	}
	return s.EnrollmentRepo.Delete(moduleID, studentID)
}

// ListMyModules 学生查看自己已选的模块
func (s *EnrollmentService) ListMyModules(studentID uint) ([]model.Module, error) {
	enrollments, err := s.EnrollmentRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}
	modules := make([]model.Module, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Module != nil {
			modules = append(modules, *e.Module)
		}
	}
	return modules, nil
}

type EnrolledStudent struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	EnrolledAt string `json:"enrolledAt"`
}

func (s *EnrollmentService) ListModuleStudents(operatorID uint, role model.UserRole, moduleID uint) ([]EnrolledStudent, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if role != model.Admin && module.TeacherID != operatorID {
		return nil, util.ErrPermissionDenied
	}

	enrollments, err := s.EnrollmentRepo.ListByModule(moduleID)
	if err != nil {
		return nil, err
	}
	students := make([]EnrolledStudent, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Student == nil {
			continue
		}
		students = append(students, EnrolledStudent{
			ID:         e.Student.ID,
			Name:       e.Student.Name,
			Email:      e.Student.Email,
			EnrolledAt: e.CreatedAt.Format(util.TimeFormat),
		})
	}
	return students, nil
}
