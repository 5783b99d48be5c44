package model

// swagger:model Course
type Course struct {
	BaseModel
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	InstructorID uint      `gorm:"index" json:"instructorId"`
	Price        int64     `gorm:"default:0" json:"price"` // 最小货币单位（分）
	Currency     string    `gorm:"size:10;default:'ZMW'" json:"currency"`
	Level        string    `gorm:"size:20;default:'beginner'" json:"level"`
	CoverURL     string    `gorm:"size:255" json:"coverUrl"`
	Published    bool      `gorm:"default:false" json:"published"`
	Chapters     []Chapter `gorm:"foreignKey:CourseID" json:"chapters,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Chapter 课程内的有序章节，章节访问受上一章测验通过约束
type Chapter struct {
	BaseModel
	CourseID    uint           `gorm:"index;not null" json:"courseId"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Order       int            `gorm:"default:0" json:"order"`
	Videos      []Video        `gorm:"foreignKey:ChapterID" json:"videos,omitempty"`
	Questions   []QuizQuestion `gorm:"foreignKey:ChapterID" json:"questions,omitempty"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// Video 属于唯一章节，发布后不可变
type Video struct {
	BaseModel
	CourseID     uint    `gorm:"index;not null" json:"courseId"`
	ChapterID    uint    `gorm:"index;not null" json:"chapterId"`
	Title        string  `gorm:"size:255;not null" json:"title"`
	Order        int     `gorm:"default:0" json:"order"`
	Duration     float64 `gorm:"default:0" json:"duration"` // 秒
	URL          string  `gorm:"size:255" json:"url"`
	ThumbnailURL string  `gorm:"size:255" json:"thumbnailUrl"`
}

func (Video) TableName() string {
	return "videos"
}

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// QuizQuestion 章节测验题，章节的测验即 ChapterID 匹配的全部题目
type QuizQuestion struct {
	BaseModel
	ChapterID   uint         `gorm:"index;not null" json:"chapterId"`
	Type        QuestionType `gorm:"size:20;not null" json:"type"`
	Prompt      string       `gorm:"type:text;not null" json:"prompt"`
	Options     []string     `gorm:"serializer:json;type:json" json:"options"`
	Answer      int          `gorm:"not null" json:"-"` // 正确选项下标，不下发给学生
	Points      int          `gorm:"default:1" json:"points"`
	Difficulty  string       `gorm:"size:20" json:"difficulty,omitempty"`
	Explanation string       `gorm:"type:text" json:"explanation,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// RedeemCode 课程兑换码
type RedeemCode struct {
	BaseModel
	Code      string `gorm:"size:32;uniqueIndex;not null" json:"code"`
	CourseID  uint   `gorm:"index;not null" json:"courseId"`
	MaxUses   int    `gorm:"default:1" json:"maxUses"`
	UsedCount int    `gorm:"default:0" json:"usedCount"`
}

func (RedeemCode) TableName() string {
	return "redeem_codes"
}
