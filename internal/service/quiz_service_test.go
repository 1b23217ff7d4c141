package service

import (
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/database"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每个测试独立的内存库，cache=shared 保证连接池内可见
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type quizFixture struct {
	db      *gorm.DB
	svc     *QuizService
	teacher model.User
	student model.User
	module  model.Module
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	db := setupTestDB(t)

	f := &quizFixture{
		db: db,
		svc: NewQuizService(
			repository.NewQuizRepository(db),
			repository.NewModuleRepository(db),
			repository.NewEnrollmentRepository(db),
		),
	}

	f.teacher = model.User{Name: "teacher", Email: "t@example.com", Password: "x", Role: model.Teacher, Approved: true}
	f.student = model.User{Name: "student", Email: "s@example.com", Password: "x", Role: model.Student, Approved: true}
	require.NoError(t, db.Create(&f.teacher).Error)
	require.NoError(t, db.Create(&f.student).Error)

	f.module = model.Module{Title: "Networks", TeacherID: f.teacher.ID}
	require.NoError(t, db.Create(&f.module).Error)

	return f
}

func (f *quizFixture) enrollStudent(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Enrollment{ModuleID: f.module.ID, StudentID: f.student.ID}).Error)
}

// createQuiz 建一个两道客观题加一道简答题的测验
func (f *quizFixture) createQuiz(t *testing.T, published bool, due *time.Time) *model.Quiz {
	t.Helper()
	quiz, err := f.svc.CreateQuiz(f.teacher.ID, model.Teacher, f.module.ID, QuizRequest{
		Title: "Quiz 1",
		Questions: []QuizQuestionRequest{
			{
				Text: "Which are transport protocols?",
				Type: model.MultipleChoice,
				Options: []QuestionOptionRequest{
					{Text: "TCP", IsCorrect: true},
					{Text: "UDP", IsCorrect: true},
					{Text: "HTTP"},
				},
			},
			{
				Text: "IP is connectionless",
				Type: model.TrueFalse,
				Options: []QuestionOptionRequest{
					{Text: "True", IsCorrect: true},
					{Text: "False"},
				},
			},
			{
				Text: "Explain congestion control",
				Type: model.ShortAnswer,
			},
		},
	})
	require.NoError(t, err)

	if published || due != nil {
		quiz, err = f.svc.UpdateQuiz(f.teacher.ID, model.Teacher, quiz.ID, QuizUpdateRequest{
			IsPublished: &published,
			DueDate:     due,
		})
		require.NoError(t, err)
	}

	full, err := f.svc.GetQuizForTeacher(f.teacher.ID, model.Teacher, quiz.ID)
	require.NoError(t, err)
	return full
}

func correctOptionIDs(q model.QuizQuestion) []uint {
	var ids []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func TestScoreAnswersSetEquality(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.createQuiz(t, false, nil)
	require.Len(t, quiz.Questions, 3)

	multi := quiz.Questions[0]
	tf := quiz.Questions[1]

	exact := correctOptionIDs(multi)
	require.Len(t, exact, 2)
	var wrong uint
	for _, o := range multi.Options {
		if !o.IsCorrect {
			wrong = o.ID
		}
	}

	cases := []struct {
		name     string
		selected []uint
		want     int
	}{
		{"exact match", exact, 1},
		{"missing one", exact[:1], 0},
		{"extra wrong option", append(append([]uint{}, exact...), wrong), 0},
		{"only wrong option", []uint{wrong}, 0},
		{"empty selection", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreAnswers(quiz.Questions, []model.SubmittedAnswer{
				{QuestionID: multi.ID, SelectedOptions: tc.selected},
			})
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("two correct questions", func(t *testing.T) {
		got := ScoreAnswers(quiz.Questions, []model.SubmittedAnswer{
			{QuestionID: multi.ID, SelectedOptions: exact},
			{QuestionID: tf.ID, SelectedOptions: correctOptionIDs(tf)},
		})
		assert.Equal(t, 2, got)
	})
}

func TestScoreAnswersEmptyCorrectSet(t *testing.T) {
	// 没有任何正确选项的题目，空作答就是集合相等
	questions := []model.QuizQuestion{
		{
			BaseModel: model.BaseModel{ID: 1},
			Type:      model.MultipleChoice,
			Options: []model.QuestionOption{
				{BaseModel: model.BaseModel{ID: 10}, Text: "A"},
				{BaseModel: model.BaseModel{ID: 11}, Text: "B"},
			},
		},
	}

	assert.Equal(t, 1, ScoreAnswers(questions, []model.SubmittedAnswer{
		{QuestionID: 1},
	}))
	assert.Equal(t, 0, ScoreAnswers(questions, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptions: []uint{10}},
	}))
}

func TestScoreAnswersSkipsShortAnswerAndUnknownIDs(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.createQuiz(t, false, nil)
	short := quiz.Questions[2]

	got := ScoreAnswers(quiz.Questions, []model.SubmittedAnswer{
		{QuestionID: short.ID, TextAnswer: "window scaling"},
		{QuestionID: 99999, SelectedOptions: []uint{1}},
	})
	assert.Equal(t, 0, got)
}

func TestSubmitQuizPreconditions(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)

	t.Run("unknown quiz", func(t *testing.T) {
		_, err := f.svc.SubmitQuiz(f.student.ID, 404, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("unpublished", func(t *testing.T) {
		quiz := f.createQuiz(t, false, nil)
		_, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
		assert.ErrorIs(t, err, util.ErrQuizNotPublished)

		var count int64
		f.db.Model(&model.QuizSubmission{}).Where("quiz_id = ?", quiz.ID).Count(&count)
		assert.Zero(t, count, "failed submission must not be persisted")
	})

	t.Run("past due", func(t *testing.T) {
		due := time.Now().Add(-time.Hour)
		quiz := f.createQuiz(t, true, &due)
		_, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
		assert.ErrorIs(t, err, util.ErrQuizPastDue)
	})
}

func TestSubmitQuizRequiresEnrollment(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.createQuiz(t, true, nil)

	_, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestSubmitQuizScoresAndMarksGraded(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)
	quiz := f.createQuiz(t, true, nil)

	answers := []model.SubmittedAnswer{
		{QuestionID: quiz.Questions[0].ID, SelectedOptions: correctOptionIDs(quiz.Questions[0])},
		{QuestionID: quiz.Questions[2].ID, TextAnswer: "free text"},
	}
	result, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: answers})
	require.NoError(t, err)

	assert.False(t, result.Retake)
	assert.Equal(t, 1, result.Submission.Score)
	// 满分等于题目总数，简答题也计入
	assert.Equal(t, 3, result.Submission.MaxScore)
	assert.True(t, result.Submission.IsGraded)
	assert.Nil(t, result.Submission.GradedAt)

	decoded, err := result.Submission.DecodedAnswers()
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestRetakeOverwritesSubmissionInPlace(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)
	quiz := f.createQuiz(t, true, nil)

	first, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{
		Answers: []model.SubmittedAnswer{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Submission.Score)

	// 教师手动评分
	graded, err := f.svc.GradeSubmission(f.teacher.ID, model.Teacher, first.Submission.ID, GradeSubmissionRequest{
		Score: 3, Feedback: "well argued",
	})
	require.NoError(t, err)
	assert.NotNil(t, graded.GradedAt)

	// 重做：覆盖同一条记录，教师评分和反馈被抹掉
	second, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{
		Answers: []model.SubmittedAnswer{
			{QuestionID: quiz.Questions[1].ID, SelectedOptions: correctOptionIDs(quiz.Questions[1])},
		},
	})
	require.NoError(t, err)

	assert.True(t, second.Retake)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, 1, second.Submission.Score)
	assert.Empty(t, second.Submission.TeacherFeedback)
	assert.Nil(t, second.Submission.GradedAt)
	assert.True(t, second.Submission.IsGraded)

	var count int64
	f.db.Model(&model.QuizSubmission{}).
		Where("quiz_id = ? AND student_id = ?", quiz.ID, f.student.ID).
		Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestGradeSubmissionRange(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)
	quiz := f.createQuiz(t, true, nil)

	result, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
	require.NoError(t, err)

	_, err = f.svc.GradeSubmission(f.teacher.ID, model.Teacher, result.Submission.ID, GradeSubmissionRequest{Score: 4})
	assert.ErrorIs(t, err, util.ErrScoreOutOfRange)

	_, err = f.svc.GradeSubmission(f.teacher.ID, model.Teacher, result.Submission.ID, GradeSubmissionRequest{Score: -1})
	assert.ErrorIs(t, err, util.ErrScoreOutOfRange)

	// 越界请求不能动原记录
	fresh, err := f.svc.GetSubmissionForStudent(f.student.ID, result.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Score)
	assert.Nil(t, fresh.GradedAt)
}

func TestGetQuizForStudentHidesUnpublishedAndAnswers(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)

	unpublished := f.createQuiz(t, false, nil)
	_, err := f.svc.GetQuizForStudent(f.student.ID, unpublished.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	published := f.createQuiz(t, true, nil)
	detail, err := f.svc.GetQuizForStudent(f.student.ID, published.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Questions, 3)
	assert.Len(t, detail.Questions[0].Options, 3)
	assert.Empty(t, detail.Questions[2].Options)
}

func TestListQuizzesForStudent(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)

	quizzes, message, err := f.svc.ListQuizzesForStudent(f.student.ID, f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, quizzes)
	assert.Empty(t, message)

	f.createQuiz(t, false, nil)
	quizzes, message, err = f.svc.ListQuizzesForStudent(f.student.ID, f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, quizzes)
	assert.NotEmpty(t, message, "unpublished quizzes should yield an explanatory message")

	published := f.createQuiz(t, true, nil)
	result, err := f.svc.SubmitQuiz(f.student.ID, published.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
	require.NoError(t, err)

	quizzes, message, err = f.svc.ListQuizzesForStudent(f.student.ID, f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, message)
	require.Len(t, quizzes, 1)
	assert.True(t, quizzes[0].Submitted)
	assert.Equal(t, result.Submission.ID, quizzes[0].SubmissionID)
}

func TestGetSubmissionForStudentCollapsesOthersToNotFound(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)
	quiz := f.createQuiz(t, true, nil)

	result, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
	require.NoError(t, err)

	other := model.User{Name: "other", Email: "o@example.com", Password: "x", Role: model.Student}
	require.NoError(t, f.db.Create(&other).Error)

	_, err = f.svc.GetSubmissionForStudent(other.ID, result.Submission.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestQuizOwnershipChecks(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.createQuiz(t, false, nil)

	intruder := model.User{Name: "intruder", Email: "i@example.com", Password: "x", Role: model.Teacher}
	require.NoError(t, f.db.Create(&intruder).Error)

	_, err := f.svc.UpdateQuiz(intruder.ID, model.Teacher, quiz.ID, QuizUpdateRequest{})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	err = f.svc.DeleteQuiz(intruder.ID, model.Teacher, quiz.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 管理员不受归属限制
	admin := model.User{Name: "admin", Email: "a@example.com", Password: "x", Role: model.Admin}
	require.NoError(t, f.db.Create(&admin).Error)
	_, err = f.svc.GetQuizForTeacher(admin.ID, model.Admin, quiz.ID)
	assert.NoError(t, err)
}

func TestDeleteQuizCascadesSubmissions(t *testing.T) {
	f := newQuizFixture(t)
	f.enrollStudent(t)
	quiz := f.createQuiz(t, true, nil)

	_, err := f.svc.SubmitQuiz(f.student.ID, quiz.ID, QuizSubmissionRequest{Answers: []model.SubmittedAnswer{}})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteQuiz(f.teacher.ID, model.Teacher, quiz.ID))

	var count int64
	f.db.Model(&model.QuizSubmission{}).Where("quiz_id = ?", quiz.ID).Count(&count)
	assert.Zero(t, count)
}
