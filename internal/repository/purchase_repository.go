package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	DB *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

func (r *PurchaseRepository) Create(p *model.CoursePurchase) error {
	return r.DB.Create(p).Error
}

func (r *PurchaseRepository) Exists(userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.CoursePurchase{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *PurchaseRepository) Find(userID, courseID uint) (*model.CoursePurchase, error) {
	var purchase model.CoursePurchase
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) ListByUser(userID uint) ([]model.CoursePurchase, error) {
	var purchases []model.CoursePurchase
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

func (r *PurchaseRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.CoursePurchase{}).Count(&count).Error
	return count, err
}
