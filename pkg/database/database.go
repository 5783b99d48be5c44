package database

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}

// Migrate 执行全部表迁移并插入默认数据，测试里对 sqlite 也复用这套迁移
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Video{},
		&model.QuizQuestion{},
		&model.RedeemCode{},
		&model.CourseProgress{},
		&model.QuizAttempt{},
		&model.AffiliateLink{},
		&model.Transaction{},
		&model.CoursePurchase{},
		&model.Certificate{},
	)
	if err != nil {
		return err
	}

	// 默认管理员（首次启动）
	var count int64
	db.Model(&model.User{}).Where("role = ?", model.Admin).Count(&count)
	if count == 0 {
		admin := &model.User{
			Name:     "Administrator",
			Email:    "admin@lms.local",
			Password: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", // 启动后必须修改
			Role:     model.Admin,
		}
		db.Create(admin)
	}

	return nil
}
