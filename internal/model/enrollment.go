package model

// Enrollment 学生选课记录，决定学生能否读取模块内容和测验
type Enrollment struct {
	BaseModel
	ModuleID  uint `gorm:"uniqueIndex:idx_enrollment_pair;not null" json:"moduleId"`
	StudentID uint `gorm:"uniqueIndex:idx_enrollment_pair;not null" json:"studentId"`

	Module  *Module `json:"module,omitempty"`
	Student *User   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}
