package repository

import (
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}

// FindByUserCourse 没有证书时返回 (nil, nil)
func (r *CertificateRepository) FindByUserCourse(userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) ListByUser(userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.Where("user_id = ?", userID).Order("issued_at DESC").Find(&certs).Error
	return certs, err
}
