package model

type DepositStatus string

const (
	DepositSubmitted DepositStatus = "submitted"
	DepositPending   DepositStatus = "pending"
	DepositCompleted DepositStatus = "completed"
	DepositFailed    DepositStatus = "failed"
	DepositRejected  DepositStatus = "rejected"
)

// Terminal 终态后网关不会再变更该笔存款
func (s DepositStatus) Terminal() bool {
	return s == DepositCompleted || s == DepositFailed || s == DepositRejected
}

// Transaction 一次移动支付尝试，DepositID 与网关侧对应
// 状态只由网关的异步结果驱动，进入终态后不再变更
type Transaction struct {
	BaseModel
	DepositID     string        `gorm:"size:36;uniqueIndex;not null" json:"depositId"`
	UserID        uint          `gorm:"index;not null" json:"userId"`
	CourseID      uint          `gorm:"index;not null" json:"courseId"`
	Amount        int64         `gorm:"not null" json:"amount"` // 最小货币单位
	Currency      string        `gorm:"size:10;not null" json:"currency"`
	Status        DepositStatus `gorm:"size:20;default:'submitted'" json:"status"`
	Correspondent string        `gorm:"size:50" json:"correspondent"` // 支付渠道
	PayerAddress  string        `gorm:"size:30" json:"payerAddress"`  // 手机号
	FailureReason string        `gorm:"size:255" json:"failureReason,omitempty"`
	AffiliateCode string        `gorm:"size:16" json:"affiliateCode,omitempty"` // 待归因的推广码
}

func (Transaction) TableName() string {
	return "transactions"
}

type PurchaseSource string

const (
	PurchaseByPayment PurchaseSource = "payment"
	PurchaseByRedeem  PurchaseSource = "redeem"
	PurchaseByFree    PurchaseSource = "free"
)

// CoursePurchase 用户对课程的访问授权，(user, course) 唯一
type CoursePurchase struct {
	BaseModel
	UserID    uint           `gorm:"uniqueIndex:idx_purchase_user_course;not null" json:"userId"`
	CourseID  uint           `gorm:"uniqueIndex:idx_purchase_user_course;not null" json:"courseId"`
	Source    PurchaseSource `gorm:"size:20;not null" json:"source"`
	DepositID string         `gorm:"size:36" json:"depositId,omitempty"`
}

func (CoursePurchase) TableName() string {
	return "course_purchases"
}
