package repository

import (
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// GetOrCreate 首次访问课程时创建初始进度：位置 (0,0)，全部集合为空
func (r *ProgressRepository) GetOrCreate(userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress = model.CourseProgress{
		UserID:            userID,
		CourseID:          courseID,
		CompletedVideos:   model.IDSet{},
		CompletedChapters: model.IDSet{},
		QuizPassed:        model.IDSet{},
	}
	if err := r.DB.Create(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *ProgressRepository) Save(progress *model.CourseProgress) error {
	return r.DB.Save(progress).Error
}

// Reset 原记录整体回到初始状态
func (r *ProgressRepository) Reset(progress *model.CourseProgress) error {
	progress.CurrentChapter = 0
	progress.CurrentVideo = 0
	progress.CompletedVideos = model.IDSet{}
	progress.CompletedChapters = model.IDSet{}
	progress.QuizPassed = model.IDSet{}
	progress.TotalTimeSpent = 0
	progress.CompletedAt = nil

	return r.DB.Model(progress).Select(
		"current_chapter", "current_video", "completed_videos",
		"completed_chapters", "quiz_passed", "total_time_spent", "completed_at",
	).Updates(progress).Error
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.CourseProgress, error) {
	var list []model.CourseProgress
	err := r.DB.Where("user_id = ?", userID).Find(&list).Error
	return list, err
}
