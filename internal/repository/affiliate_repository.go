package repository

import (
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AffiliateRepository struct {
	DB *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{DB: db}
}

func (r *AffiliateRepository) Create(link *model.AffiliateLink) error {
	return r.DB.Create(link).Error
}

func (r *AffiliateRepository) FindByCode(code string) (*model.AffiliateLink, error) {
	var link model.AffiliateLink
	err := r.DB.Where("code = ?", code).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// FindByUserCourse 同一 (user, course) 的码只生成一次，没有则 (nil, nil)
func (r *AffiliateRepository) FindByUserCourse(userID, courseID uint) (*model.AffiliateLink, error) {
	var link model.AffiliateLink
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *AffiliateRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.AffiliateLink{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// IncrementClicks 原子自增，并发点击之间不做读改写
func (r *AffiliateRepository) IncrementClicks(code string) error {
	return r.DB.Model(&model.AffiliateLink{}).
		Where("code = ?", code).
		Update("clicks", gorm.Expr("clicks + 1")).Error
}

// RecordConversion 成交数与累计收益在一条 UPDATE 里原子累加
func (r *AffiliateRepository) RecordConversion(code string, netAmount float64) error {
	return r.DB.Model(&model.AffiliateLink{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"conversions":    gorm.Expr("conversions + 1"),
			"total_earnings": gorm.Expr("total_earnings + ?", netAmount),
		}).Error
}

// TopByEarnings 管理端看板用
func (r *AffiliateRepository) TopByEarnings(limit int) ([]model.AffiliateLink, error) {
	var links []model.AffiliateLink
	err := r.DB.Order("total_earnings DESC").Limit(limit).Find(&links).Error
	return links, err
}
