package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Save(user *model.User) error {
	return r.DB.Save(user).Error
}

func (r *UserRepository) List(page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	if err := r.DB.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.DB.Offset((page - 1) * limit).Limit(limit).Order("created_at DESC").Find(&users).Error
	return users, total, err
}

func (r *UserRepository) SetDisabled(id uint, disabled bool) error {
	result := r.DB.Model(&model.User{}).Where("id = ?", id).Update("disabled", disabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Count(&count).Error
	return count, err
}
