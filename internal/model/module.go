package model

import "time"

// 附件容器类型。附件通过 (OwnerType, OwnerID) 挂在章节/大纲/参考资料下，
// 用稳定主键寻址而不是数组下标。
const (
	OwnerChapter   = "chapter"
	OwnerSyllabus  = "syllabus"
	OwnerReference = "reference"
)

type FileType string

const (
	FilePDF      FileType = "pdf"
	FileVideo    FileType = "video"
	FileDocument FileType = "document"
)

// swagger:model Module
type Module struct {
	BaseModel
	Title        string `gorm:"size:200;not null" json:"title"`
	Description  string `gorm:"type:text" json:"description"`
	AcademicYear string `gorm:"size:20" json:"academicYear"`
	Level        string `gorm:"size:50" json:"level"`
	Semester     int    `json:"semester"`
	TeacherID    uint   `gorm:"index" json:"teacherId"` // 负责该模块的教师
	CreatedBy    uint   `json:"createdBy"`

	Chapters   []Chapter  `gorm:"constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	Syllabus   *Syllabus  `gorm:"constraint:OnDelete:CASCADE" json:"syllabus,omitempty"`
	References []Reference `gorm:"constraint:OnDelete:CASCADE" json:"references,omitempty"`
}

type Chapter struct {
	BaseModel
	ModuleID uint   `gorm:"index;not null" json:"moduleId"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	Position int    `json:"position"`

	Attachments []Attachment `gorm:"polymorphic:Owner" json:"attachments,omitempty"`
}

type Syllabus struct {
	BaseModel
	ModuleID uint   `gorm:"uniqueIndex;not null" json:"moduleId"`
	Content  string `gorm:"type:text" json:"content"`

	Attachments []Attachment `gorm:"polymorphic:Owner" json:"attachments,omitempty"`
}

type Reference struct {
	BaseModel
	ModuleID uint   `gorm:"index;not null" json:"moduleId"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Author   string `gorm:"size:200" json:"author"`
	Notes    string `gorm:"type:text" json:"notes"`
	Position int    `json:"position"`

	Attachments []Attachment `gorm:"polymorphic:Owner" json:"attachments,omitempty"`
}

// Attachment 上传的附件。上传后 Temporary=true，保存容器时转正。
// ModuleID 冗余存储，方便按模块批量清理临时文件。
type Attachment struct {
	BaseModel
	ModuleID     uint      `gorm:"index;not null" json:"moduleId"`
	OwnerType    string    `gorm:"size:20;index:idx_attachment_owner" json:"ownerType"`
	OwnerID      uint      `gorm:"index:idx_attachment_owner" json:"ownerId"`
	Path         string    `gorm:"size:255;not null" json:"path"`
	FileType     FileType  `gorm:"size:20" json:"fileType"`
	OriginalName string    `gorm:"size:255" json:"originalName"`
	Size         int64     `json:"size"`
	Duration     float64   `json:"duration,omitempty"` // 视频时长（秒），非视频为 0
	Temporary    bool      `gorm:"default:true;index" json:"-"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
