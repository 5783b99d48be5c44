package model

import (
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptPassed     AttemptStatus = "passed"
	AttemptFailed     AttemptStatus = "failed"
)

// QuizAttempt 一次计时测验，到期未提交由后台扫描强制判卷
type QuizAttempt struct {
	BaseModel
	UserID      uint          `gorm:"index:idx_attempt_user_chapter;not null" json:"userId"`
	ChapterID   uint          `gorm:"index:idx_attempt_user_chapter;not null" json:"chapterId"`
	CourseID    uint          `gorm:"index;not null" json:"courseId"`
	Status      AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	Answers     map[uint]int  `gorm:"serializer:json;type:json" json:"answers"` // questionID -> 选项下标
	Score       float64       `gorm:"default:0" json:"score"`
	StartedAt   time.Time     `json:"startedAt"`
	Deadline    time.Time     `gorm:"index" json:"deadline"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty"`
	AutoClosed  bool          `gorm:"default:false" json:"autoClosed"` // 到期由扫描器判卷
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
