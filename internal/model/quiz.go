package model

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
	ShortAnswer    QuestionType = "short-answer"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	ModuleID    uint       `gorm:"index;not null" json:"moduleId"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedBy   uint       `json:"createdBy"`

	Questions []QuizQuestion `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

type QuizQuestion struct {
	BaseModel
	QuizID   uint         `gorm:"index;not null" json:"quizId"`
	Text     string       `gorm:"type:text;not null" json:"text"`
	Type     QuestionType `gorm:"size:20;not null" json:"type"`
	Position int          `json:"position"`

	Options []QuestionOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Position   int    `json:"position"`
}
