package model

import (
	"encoding/json"
	"time"
)

// SubmittedAnswer 学生对单道题的作答
type SubmittedAnswer struct {
	QuestionID      uint   `json:"questionId"`
	SelectedOptions []uint `json:"selectedOptions,omitempty"`
	TextAnswer      string `json:"textAnswer,omitempty"`
}

// QuizSubmission 每个 (测验, 学生) 只保留一条记录，重做时原地覆盖
type QuizSubmission struct {
	BaseModel
	QuizID          uint            `gorm:"uniqueIndex:idx_submission_pair;not null" json:"quizId"`
	StudentID       uint            `gorm:"uniqueIndex:idx_submission_pair;not null" json:"studentId"`
	Answers         json.RawMessage `gorm:"type:json" json:"answers"`
	Score           int             `json:"score"`
	MaxScore        int             `json:"maxScore"`
	IsGraded        bool            `gorm:"default:false" json:"isGraded"`
	TeacherFeedback string          `gorm:"type:text" json:"teacherFeedback"`
	SubmittedAt     time.Time       `json:"submittedAt"`
	GradedAt        *time.Time      `json:"gradedAt"`

	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

func (s *QuizSubmission) DecodedAnswers() ([]SubmittedAnswer, error) {
	var answers []SubmittedAnswer
	if len(s.Answers) == 0 {
		return answers, nil
	}
	err := json.Unmarshal(s.Answers, &answers)
	return answers, err
}
