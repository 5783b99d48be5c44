package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	DB *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

func (r *TransactionRepository) Create(tx *model.Transaction) error {
	return r.DB.Create(tx).Error
}

func (r *TransactionRepository) FindByDepositID(depositID string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.DB.Where("deposit_id = ?", depositID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateStatus 终态不回退：已处于终态的记录不会被覆盖
func (r *TransactionRepository) UpdateStatus(depositID string, status model.DepositStatus, failureReason string) error {
	return r.DB.Model(&model.Transaction{}).
		Where("deposit_id = ? AND status NOT IN ?", depositID, []model.DepositStatus{
			model.DepositCompleted, model.DepositFailed, model.DepositRejected,
		}).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": failureReason,
		}).Error
}

func (r *TransactionRepository) ListByUser(userID uint) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&txs).Error
	return txs, err
}

// NonTerminal 尚未到终态的存款单（重启后恢复轮询用）
func (r *TransactionRepository) NonTerminal() ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.DB.Where("status IN ?", []model.DepositStatus{model.DepositSubmitted, model.DepositPending}).Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) Recent(limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.DB.Order("created_at DESC").Limit(limit).Find(&txs).Error
	return txs, err
}

// StatusBreakdown 各状态的交易数量
func (r *TransactionRepository) StatusBreakdown() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.DB.Model(&model.Transaction{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]int64, len(rows))
	for _, r := range rows {
		breakdown[r.Status] = r.Count
	}
	return breakdown, nil
}

// CompletedRevenue 已完成交易的总金额（最小货币单位）
func (r *TransactionRepository) CompletedRevenue() (int64, error) {
	var total int64
	err := r.DB.Model(&model.Transaction{}).
		Where("status = ?", model.DepositCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
