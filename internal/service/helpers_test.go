package service

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/database"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB 每个测试一个独立的内存库，迁移与生产同一套
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// 内存库必须钉在单连接上，否则每个连接各是一个空库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.FrontendURL = "http://localhost:3000"
	cfg.Affiliate.PlatformFeePercent = 10
	cfg.Affiliate.CodeLength = 8
	cfg.Payment.Currency = "ZMW"
	cfg.Payment.PollInterval = 10 * time.Millisecond
	cfg.Payment.MaxInitAttempts = 3
	return cfg
}

// seedCourse 一门 published 课程加 n 个有序章节，
// 每章两道题：2 分单选（答案 1）+ 1 分判断（答案 1）
func seedCourse(t *testing.T, db *gorm.DB, chapterCount int, price int64) (*model.Course, []model.Chapter) {
	t.Helper()

	course := &model.Course{Title: "测试课程", Price: price, Currency: "ZMW", Published: true, InstructorID: 1}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}

	chapters := make([]model.Chapter, 0, chapterCount)
	for i := 0; i < chapterCount; i++ {
		ch := model.Chapter{CourseID: course.ID, Title: fmt.Sprintf("第 %d 章", i+1), Order: i}
		if err := db.Create(&ch).Error; err != nil {
			t.Fatalf("seed chapter: %v", err)
		}

		questions := []model.QuizQuestion{
			{ChapterID: ch.ID, Type: model.MultipleChoice, Prompt: "单选", Options: []string{"A", "B", "C"}, Answer: 1, Points: 2},
			{ChapterID: ch.ID, Type: model.TrueFalse, Prompt: "判断", Options: []string{"错", "对"}, Answer: 1, Points: 1},
		}
		for j := range questions {
			if err := db.Create(&questions[j]).Error; err != nil {
				t.Fatalf("seed question: %v", err)
			}
		}
		chapters = append(chapters, ch)
	}
	return course, chapters
}

func newProgressService(db *gorm.DB) *ProgressService {
	return NewProgressService(
		repository.NewProgressRepository(db),
		repository.NewCourseRepository(db),
		repository.NewQuizRepository(db),
		repository.NewCertificateRepository(db),
	)
}

func newQuizService(db *gorm.DB) *QuizService {
	return NewQuizService(
		repository.NewQuizRepository(db),
		repository.NewCourseRepository(db),
		newProgressService(db),
	)
}
