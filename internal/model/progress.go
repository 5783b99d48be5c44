package model

import (
	"time"
)

// CourseProgress 每个学员每门课一条，服务端持有
// 不变量: CompletedChapters ⊆ QuizPassed（由 MarkQuizPassed 单操作保证）
type CourseProgress struct {
	BaseModel
	UserID            uint       `gorm:"uniqueIndex:idx_user_course;not null" json:"userId"`
	CourseID          uint       `gorm:"uniqueIndex:idx_user_course;not null" json:"courseId"`
	CurrentChapter    int        `gorm:"default:0" json:"currentChapter"`
	CurrentVideo      int        `gorm:"default:0" json:"currentVideo"`
	CompletedVideos   IDSet      `gorm:"serializer:json;type:json" json:"completedVideos"`
	CompletedChapters IDSet      `gorm:"serializer:json;type:json" json:"completedChapters"`
	QuizPassed        IDSet      `gorm:"serializer:json;type:json" json:"quizPassed"`
	TotalTimeSpent    int64      `gorm:"default:0" json:"totalTimeSpent"` // 累计播放毫秒数
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// CourseCompletionState 派生状态，不落库（CompletedAt 除外）
type CourseCompletionState struct {
	IsCompleted    bool       `json:"isCompleted"`
	FinalScore     float64    `json:"finalScore"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
}

// Certificate 完课证书，完成瞬间签发一次
type Certificate struct {
	BaseModel
	UserID     uint      `gorm:"uniqueIndex:idx_cert_user_course;not null" json:"userId"`
	CourseID   uint      `gorm:"uniqueIndex:idx_cert_user_course;not null" json:"courseId"`
	Serial     string    `gorm:"size:36;uniqueIndex;not null" json:"serial"`
	FinalScore float64   `gorm:"default:0" json:"finalScore"`
	IssuedAt   time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
