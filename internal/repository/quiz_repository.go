package repository

import (
	"errors"
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) CreateAttempt(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *QuizRepository) FindAttempt(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// ActiveAttempt 该用户在该章节上未提交的尝试，没有则返回 (nil, nil)
func (r *QuizRepository) ActiveAttempt(userID, chapterID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.
		Where("user_id = ? AND chapter_id = ? AND status = ?", userID, chapterID, model.AttemptInProgress).
		Order("started_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *QuizRepository) SaveAttempt(attempt *model.QuizAttempt) error {
	return r.DB.Save(attempt).Error
}

// ExpiredAttempts 截止时间已过但仍未提交的尝试，由后台扫描器强制判卷
func (r *QuizRepository) ExpiredAttempts(now time.Time, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.
		Where("status = ? AND deadline < ?", model.AttemptInProgress, now).
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// PassedScores 某用户某课程所有通过的测验得分，用于completion最终分
func (r *QuizRepository) PassedScores(userID, courseID uint) ([]float64, error) {
	var scores []float64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.AttemptPassed).
		Pluck("score", &scores).Error
	return scores, err
}
