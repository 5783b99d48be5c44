package model

// AffiliateLink (userID, courseID) -> 推广码的映射
// 计数列只允许原子 UPDATE 表达式自增，禁止读改写
type AffiliateLink struct {
	BaseModel
	Code          string  `gorm:"size:16;uniqueIndex;not null" json:"code"`
	UserID        uint    `gorm:"uniqueIndex:idx_aff_user_course;not null" json:"userId"`
	CourseID      uint    `gorm:"uniqueIndex:idx_aff_user_course;not null" json:"courseId"`
	Clicks        int64   `gorm:"default:0" json:"clicks"`
	Conversions   int64   `gorm:"default:0" json:"conversions"`
	TotalEarnings float64 `gorm:"default:0" json:"totalEarnings"` // 已扣除平台抽成
}

func (AffiliateLink) TableName() string {
	return "affiliate_links"
}
