package service

import (
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEnrollmentService(
		repository.NewEnrollmentRepository(db),
		repository.NewModuleRepository(db),
		repository.NewUserRepository(db),
	)

	teacher := model.User{Name: "teacher", Email: "t@example.com", Password: "x", Role: model.Teacher}
	student := model.User{Name: "student", Email: "s@example.com", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(&teacher).Error)
	require.NoError(t, db.Create(&student).Error)

	module := model.Module{Title: "Algorithms", TeacherID: teacher.ID}
	require.NoError(t, db.Create(&module).Error)

	_, err := svc.Enroll(teacher.ID, model.Teacher, module.ID, student.ID)
	require.NoError(t, err)

	// 重复选课
	_, err = svc.Enroll(teacher.ID, model.Teacher, module.ID, student.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)

	modules, err := svc.ListMyModules(student.ID)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, module.ID, modules[0].ID)

	students, err := svc.ListModuleStudents(teacher.ID, model.Teacher, module.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, student.ID, students[0].ID)

	// 退课后可以重新选
	require.NoError(t, svc.Unenroll(teacher.ID, model.Teacher, module.ID, student.ID))
	_, err = svc.Enroll(teacher.ID, model.Teacher, module.ID, student.ID)
	assert.NoError(t, err)
}

func TestEnrollPermissionsAndTargets(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEnrollmentService(
		repository.NewEnrollmentRepository(db),
		repository.NewModuleRepository(db),
		repository.NewUserRepository(db),
	)

	teacher := model.User{Name: "teacher", Email: "t@example.com", Password: "x", Role: model.Teacher}
	other := model.User{Name: "other", Email: "o@example.com", Password: "x", Role: model.Teacher}
	student := model.User{Name: "student", Email: "s@example.com", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(&teacher).Error)
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&student).Error)

	module := model.Module{Title: "Algorithms", TeacherID: teacher.ID}
	require.NoError(t, db.Create(&module).Error)

	// 非负责教师不能操作选课
	_, err := svc.Enroll(other.ID, model.Teacher, module.ID, student.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 只有学生账号能被选进模块
	_, err = svc.Enroll(teacher.ID, model.Teacher, module.ID, other.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	// 管理员放行
	admin := model.User{Name: "admin", Email: "a@example.com", Password: "x", Role: model.Admin}
	require.NoError(t, db.Create(&admin).Error)
	_, err = svc.Enroll(admin.ID, model.Admin, module.ID, student.ID)
	assert.NoError(t, err)
}
