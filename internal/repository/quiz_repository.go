package repository

import (
	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(q *model.Quiz) error {
	return r.DB.Create(q).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) ListByModule(moduleID uint, publishedOnly bool) ([]model.Quiz, error) {
	var qs []model.Quiz
	query := r.DB.Where("module_id = ?", moduleID)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	err := query.Order("created_at desc").Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) CountByModule(moduleID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Where("module_id = ?", moduleID).Count(&count).Error
	return count, err
}

func (r *QuizRepository) Update(q *model.Quiz) error {
	return r.DB.Save(q).Error
}

// ReplaceQuestions 整体替换题目集合（更新测验时提交了 questions 字段）
func (r *QuizRepository) ReplaceQuestions(quizID uint, questions []model.QuizQuestion) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var old []model.QuizQuestion
		if err := tx.Where("quiz_id = ?", quizID).Find(&old).Error; err != nil {
			return err
		}
		for _, q := range old {
			if err := tx.Where("question_id = ?", q.ID).Delete(&model.QuestionOption{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuizID = quizID
			if err := tx.Create(&questions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete 删除测验并级联删除其全部提交
func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizSubmission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Quiz{}, id).Error
	})
}

func (r *QuizRepository) DeleteByModule(moduleID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var quizzes []model.Quiz
		if err := tx.Where("module_id = ?", moduleID).Find(&quizzes).Error; err != nil {
			return err
		}
		for _, q := range quizzes {
			if err := tx.Where("quiz_id = ?", q.ID).Delete(&model.QuizSubmission{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("module_id = ?", moduleID).Delete(&model.Quiz{}).Error
	})
}

// 提交记录

func (r *QuizRepository) CreateSubmission(s *model.QuizSubmission) error {
	return r.DB.Create(s).Error
}

func (r *QuizRepository) UpdateSubmission(s *model.QuizSubmission) error {
	return r.DB.Save(s).Error
}

func (r *QuizRepository) FindSubmission(quizID, studentID uint) (*model.QuizSubmission, error) {
	var s model.QuizSubmission
	err := r.DB.Where("quiz_id = ? AND student_id = ?", quizID, studentID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *QuizRepository) FindSubmissionByID(id uint) (*model.QuizSubmission, error) {
	var s model.QuizSubmission
	err := r.DB.Preload("Student").First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *QuizRepository) ListSubmissionsByQuiz(quizID uint) ([]model.QuizSubmission, error) {
	var ss []model.QuizSubmission
	err := r.DB.Preload("Student").Where("quiz_id = ?", quizID).
		Order("submitted_at desc").Find(&ss).Error
	return ss, err
}
