package service

import (
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type QuizService struct {
	QuizRepo       *repository.QuizRepository
	ModuleRepo     *repository.ModuleRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewQuizService(quizRepo *repository.QuizRepository, moduleRepo *repository.ModuleRepository, enrollmentRepo *repository.EnrollmentRepository) *QuizService {
	return &QuizService{
		QuizRepo:       quizRepo,
		ModuleRepo:     moduleRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

type QuestionOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuizQuestionRequest struct {
	Text    string                  `json:"text" binding:"required"`
	Type    model.QuestionType      `json:"type" binding:"required,oneof=multiple-choice true-false short-answer"`
	Options []QuestionOptionRequest `json:"options"`
}

type QuizRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	DueDate     *time.Time            `json:"dueDate"`
	Questions   []QuizQuestionRequest `json:"questions"`
}

// QuizUpdateRequest 部分更新：nil 字段保持原值
type QuizUpdateRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	DueDate     *time.Time             `json:"dueDate"`
	IsPublished *bool                  `json:"isPublished"`
	Questions   *[]QuizQuestionRequest `json:"questions"`
}

func buildQuestions(reqs []QuizQuestionRequest) []model.QuizQuestion {
	questions := make([]model.QuizQuestion, len(reqs))
	for i, q := range reqs {
		question := model.QuizQuestion{
			Text:     q.Text,
			Type:     q.Type,
			Position: i,
		}
		// 简答题不带选项，自动判分也不覆盖
		if q.Type != model.ShortAnswer {
			question.Options = make([]model.QuestionOption, len(q.Options))
			for j, o := range q.Options {
				question.Options[j] = model.QuestionOption{
					Text:      o.Text,
					IsCorrect: o.IsCorrect,
					Position:  j,
				}
			}
		}
		questions[i] = question
	}
	return questions
}

// requireModuleOwner 校验调用者是模块负责教师（管理员放行）
func (s *QuizService) requireModuleOwner(moduleID, userID uint, role model.UserRole) (*model.Module, error) {
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

func (s *QuizService) CreateQuiz(userID uint, role model.UserRole, moduleID uint, req QuizRequest) (*model.Quiz, error) {
	if _, err := s.requireModuleOwner(moduleID, userID, role); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		ModuleID:    moduleID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		IsPublished: false,
		CreatedBy:   userID,
		Questions:   buildQuestions(req.Questions),
	}
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// UpdateQuiz 部分更新。提交了 questions 字段时整体替换题目；
// 已有提交的答案不做重新校验，属于已知的陈旧风险。
func (s *QuizService) UpdateQuiz(userID uint, role model.UserRole, quizID uint, req QuizUpdateRequest) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.requireModuleOwner(quiz.ModuleID, userID, role); err != nil {
		return nil, err
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.DueDate != nil {
		quiz.DueDate = req.DueDate
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}

	quiz.Questions = nil
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		if err := s.QuizRepo.ReplaceQuestions(quiz.ID, buildQuestions(*req.Questions)); err != nil {
			return nil, err
		}
	}

	return s.QuizRepo.FindByID(quiz.ID)
}

func (s *QuizService) DeleteQuiz(userID uint, role model.UserRole, quizID uint) error {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotFound
		}
		return err
	}
	if _, err := s.requireModuleOwner(quiz.ModuleID, userID, role); err != nil {
		return err
	}
	return s.QuizRepo.Delete(quizID)
}

func (s *QuizService) GetQuizForTeacher(userID uint, role model.UserRole, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.requireModuleOwner(quiz.ModuleID, userID, role); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) ListQuizzesForTeacher(userID uint, role model.UserRole, moduleID uint) ([]model.Quiz, error) {
	if _, err := s.requireModuleOwner(moduleID, userID, role); err != nil {
		return nil, err
	}
	return s.QuizRepo.ListByModule(moduleID, false)
}

// StudentQuizSummary 学生测验列表项，附带本人提交状态
type StudentQuizSummary struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueDate      *time.Time `json:"dueDate"`
	Submitted    bool       `json:"submitted"`
	SubmissionID uint       `json:"submissionId,omitempty"`
	IsGraded     bool       `json:"isGraded"`
	Score        int        `json:"score"`
	MaxScore     int        `json:"maxScore"`
}

// ListQuizzesForStudent 返回已发布的测验。模块有测验但全部未发布时，
// message 非空，区分"没有测验"和"有但还没开放"。
func (s *QuizService) ListQuizzesForStudent(studentID, moduleID uint) ([]StudentQuizSummary, string, error) {
	if _, err := s.ModuleRepo.FindByID(moduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", util.ErrNotFound
		}
		return nil, "", err
	}

	enrolled, err := s.EnrollmentRepo.Exists(moduleID, studentID)
	if err != nil {
		return nil, "", err
	}
	if !enrolled {
		return nil, "", util.ErrNotEnrolled
	}

	published, err := s.QuizRepo.ListByModule(moduleID, true)
	if err != nil {
		return nil, "", err
	}

	if len(published) == 0 {
		total, err := s.QuizRepo.CountByModule(moduleID)
		if err != nil {
			return nil, "", err
		}
		if total > 0 {
			return []StudentQuizSummary{}, "该模块的测验尚未发布", nil
		}
		return []StudentQuizSummary{}, "", nil
	}

	summaries := make([]StudentQuizSummary, len(published))
	for i, quiz := range published {
		summary := StudentQuizSummary{
			ID:          quiz.ID,
			Title:       quiz.Title,
			Description: quiz.Description,
			DueDate:     quiz.DueDate,
		}
		submission, err := s.QuizRepo.FindSubmission(quiz.ID, studentID)
		if err == nil {
			summary.Submitted = true
			summary.SubmissionID = submission.ID
			summary.IsGraded = submission.IsGraded
			summary.Score = submission.Score
			summary.MaxScore = submission.MaxScore
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", err
		}
		summaries[i] = summary
	}
	return summaries, "", nil
}

// StudentQuizDetail 学生答题视图，选项不携带正确标记
type StudentQuizDetail struct {
	ID          uint                  `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	DueDate     *time.Time            `json:"dueDate"`
	Questions   []StudentQuizQuestion `json:"questions"`
}

type StudentQuizQuestion struct {
	ID      uint                `json:"id"`
	Text    string              `json:"text"`
	Type    model.QuestionType  `json:"type"`
	Options []StudentQuizOption `json:"options,omitempty"`
}

type StudentQuizOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

func (s *QuizService) GetQuizForStudent(studentID, quizID uint) (*StudentQuizDetail, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrNotFound
	}

	enrolled, err := s.EnrollmentRepo.Exists(quiz.ModuleID, studentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	detail := &StudentQuizDetail{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		DueDate:     quiz.DueDate,
		Questions:   make([]StudentQuizQuestion, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		sq := StudentQuizQuestion{
			ID:   q.ID,
			Text: q.Text,
			Type: q.Type,
		}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, StudentQuizOption{ID: o.ID, Text: o.Text})
		}
		detail.Questions[i] = sq
	}
	return detail, nil
}

type QuizSubmissionRequest struct {
	Answers []model.SubmittedAnswer `json:"answers" binding:"required"`
}

type QuizSubmissionResult struct {
	Submission *model.QuizSubmission `json:"submission"`
	Retake     bool                  `json:"retake"`
}

// SubmitQuiz 提交测验。前置条件按序校验：存在 → 已发布 → 未过期 → 已选课，
// 任何一条不满足都不落库。重做时原地覆盖旧记录，包括教师手动给的分。
func (s *QuizService) SubmitQuiz(studentID, quizID uint, req QuizSubmissionRequest) (*QuizSubmissionResult, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}

	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	if quiz.DueDate != nil && time.Now().After(*quiz.DueDate) {
		return nil, util.ErrQuizPastDue
	}

	enrolled, err := s.EnrollmentRepo.Exists(quiz.ModuleID, studentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	score := ScoreAnswers(quiz.Questions, req.Answers)
	maxScore := len(quiz.Questions)

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	existing, err := s.QuizRepo.FindSubmission(quizID, studentID)
	if err == nil {
		// 重做：整条覆盖，不保留上一次的答案、得分和教师评分
		existing.Answers = answersJSON
		existing.Score = score
		existing.MaxScore = maxScore
		existing.IsGraded = true
		existing.TeacherFeedback = ""
		existing.SubmittedAt = now
		existing.GradedAt = nil
		if err := s.QuizRepo.UpdateSubmission(existing); err != nil {
			return nil, err
		}
		return &QuizSubmissionResult{Submission: existing, Retake: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	submission := &model.QuizSubmission{
		QuizID:      quizID,
		StudentID:   studentID,
		Answers:     answersJSON,
		Score:       score,
		MaxScore:    maxScore,
		IsGraded:    true,
		SubmittedAt: now,
	}
	if err := s.QuizRepo.CreateSubmission(submission); err != nil {
		return nil, err
	}
	return &QuizSubmissionResult{Submission: submission, Retake: false}, nil
}

// ScoreAnswers 自动判分。客观题按选项集合严格相等计 1 分：
// 多选、漏选、错选都不得分。简答题不参与自动判分。
// 找不到对应题目的作答直接忽略。
func ScoreAnswers(questions []model.QuizQuestion, answers []model.SubmittedAnswer) int {
	questionMap := make(map[uint]model.QuizQuestion, len(questions))
	for _, q := range questions {
		questionMap[q.ID] = q
	}

	score := 0
	for _, ans := range answers {
		q, ok := questionMap[ans.QuestionID]
		if !ok {
			continue
		}
		if q.Type == model.ShortAnswer {
			continue
		}

		correct := make(map[uint]bool)
		for _, o := range q.Options {
			if o.IsCorrect {
				correct[o.ID] = true
			}
		}

		selected := make(map[uint]bool, len(ans.SelectedOptions))
		for _, id := range ans.SelectedOptions {
			selected[id] = true
		}

		if len(selected) != len(correct) {
			continue
		}
		match := true
		for id := range selected {
			if !correct[id] {
				match = false
				break
			}
		}
		if match {
			score++
		}
	}
	return score
}

type GradeSubmissionRequest struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// GradeSubmission 教师手动评分，无条件覆盖自动判分结果
func (s *QuizService) GradeSubmission(userID uint, role model.UserRole, submissionID uint, req GradeSubmissionRequest) (*model.QuizSubmission, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}

	quiz, err := s.QuizRepo.FindByID(submission.QuizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireModuleOwner(quiz.ModuleID, userID, role); err != nil {
		return nil, err
	}

	if req.Score < 0 || req.Score > submission.MaxScore {
		return nil, util.ErrScoreOutOfRange
	}

	now := time.Now()
	submission.Score = req.Score
	submission.TeacherFeedback = req.Feedback
	submission.IsGraded = true
	submission.GradedAt = &now

	if err := s.QuizRepo.UpdateSubmission(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GetSubmissionForStudent 学生只能看自己的提交，他人的折叠成 404
func (s *QuizService) GetSubmissionForStudent(studentID, submissionID uint) (*model.QuizSubmission, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if submission.StudentID != studentID {
		return nil, util.ErrNotFound
	}
	return submission, nil
}

func (s *QuizService) ListSubmissions(userID uint, role model.UserRole, quizID uint) ([]model.QuizSubmission, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.requireModuleOwner(quiz.ModuleID, userID, role); err != nil {
		return nil, err
	}
	return s.QuizRepo.ListSubmissionsByQuiz(quizID)
}
