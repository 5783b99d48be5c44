package service

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PaymentService 把外部移动支付的一笔存款接到本系统的购买记录上。
// 状态机 submitted -> {completed, failed, rejected}（终态），
// 未到终态期间由每笔一个的轮询协程驱动快照更新。
type PaymentService struct {
	TxRepo        *repository.TransactionRepository
	PurchaseRepo  *repository.PurchaseRepository
	CourseRepo    *repository.CourseRepository
	UserRepo      *repository.UserRepository
	Affiliate     *AffiliateService
	Notifications *NotificationService
	Gateway       *GatewayClient
	Config        *config.Config

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func NewPaymentService(
	txRepo *repository.TransactionRepository,
	purchaseRepo *repository.PurchaseRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	affiliate *AffiliateService,
	notifications *NotificationService,
	gateway *GatewayClient,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		TxRepo:        txRepo,
		PurchaseRepo:  purchaseRepo,
		CourseRepo:    courseRepo,
		UserRepo:      userRepo,
		Affiliate:     affiliate,
		Notifications: notifications,
		Gateway:       gateway,
		Config:        cfg,
		watchers:      make(map[string]context.CancelFunc),
	}
}

// Initiate 发起一笔支付。最多尝试 MaxInitAttempts 次：
// DUPLICATE_IGNORED 先换一个新 deposit id 再试（幂等键轮换），
// REJECTED 立即终止并把拒绝原因带给用户，传输错误按同 id 重试计次。
func (s *PaymentService) Initiate(userID, courseID uint, correspondent, phone, affiliateCode string) (*model.Transaction, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.Price <= 0 {
		return nil, util.ErrCourseNotFree
	}

	purchased, err := s.PurchaseRepo.Exists(userID, courseID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return nil, util.ErrAlreadyPurchased
	}

	ctx := context.Background()
	depositID := model.GenerateUUID()
	description := fmt.Sprintf("Course #%d", courseID)

	var result *DepositResult
	attempts := s.Config.Payment.MaxInitAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		req := s.Gateway.NewDepositRequest(depositID, course.Price, correspondent, phone, description)
		result, err = s.Gateway.CreateDeposit(ctx, req)
		if err != nil {
			logger.Log.Warn("deposit create transport error",
				zap.String("depositID", depositID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch result.Status {
		case GatewayDuplicateIgnored:
			// 旧 id 已被网关记账，换新 id 重试
			depositID = model.GenerateUUID()
			continue
		case GatewayRejected:
			reason := result.RejectionReason.RejectionMessage
			if reason == "" {
				reason = "payment rejected by gateway"
			}
			return nil, fmt.Errorf("%w: %s", util.ErrDepositRejected, reason)
		default:
			// ACCEPTED / SUBMITTED：落一条本地交易并开始轮询
			tx := &model.Transaction{
				DepositID:     depositID,
				UserID:        userID,
				CourseID:      courseID,
				Amount:        course.Price,
				Currency:      s.Config.Payment.Currency,
				Status:        model.DepositSubmitted,
				Correspondent: correspondent,
				PayerAddress:  phone,
				AffiliateCode: affiliateCode,
			}
			if err := s.TxRepo.Create(tx); err != nil {
				return nil, err
			}
			s.StartPolling(depositID)
			return tx, nil
		}
	}

	if err != nil {
		return nil, fmt.Errorf("deposit initiation failed after %d attempts: %w", attempts, err)
	}
	return nil, fmt.Errorf("deposit initiation exhausted %d attempts (last status %s)", attempts, result.Status)
}

// StartPolling 为一笔未决存款启动轮询协程；重复调用是 no-op。
// 轮询在观察到终态或 ctx 取消时停止，迟到的网关应答被直接丢弃。
func (s *PaymentService) StartPolling(depositID string) {
	s.mu.Lock()
	if _, running := s.watchers[depositID]; running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watchers[depositID] = cancel
	s.mu.Unlock()

	monitoring.ActivePolls.Inc()
	s.wg.Add(1)

	go func() {
		defer func() {
			monitoring.ActivePolls.Dec()
			s.stopWatcher(depositID)
			s.wg.Done()
		}()

		ticker := time.NewTicker(s.Config.Payment.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := s.checkOnce(ctx, depositID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Log.Warn("deposit poll failed",
						zap.String("depositID", depositID), zap.Error(err))
					continue
				}
				if status.Terminal() {
					monitoring.DepositOutcomes.WithLabelValues(string(status)).Inc()
					return
				}
			}
		}
	}()
}

// ResumePolling 进程重启后为所有未到终态的存款单重建轮询协程
func (s *PaymentService) ResumePolling() error {
	txs, err := s.TxRepo.NonTerminal()
	if err != nil {
		return err
	}
	for i := range txs {
		s.StartPolling(txs[i].DepositID)
	}
	if len(txs) > 0 {
		logger.Log.Info("resumed deposit polling", zap.Int("count", len(txs)))
	}
	return nil
}

func (s *PaymentService) stopWatcher(depositID string) {
	s.mu.Lock()
	if cancel, ok := s.watchers[depositID]; ok {
		cancel()
		delete(s.watchers, depositID)
	}
	s.mu.Unlock()
}

// StopAll 服务关停时取消全部轮询协程
func (s *PaymentService) StopAll() {
	s.mu.Lock()
	for id, cancel := range s.watchers {
		cancel()
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// checkOnce 查一次网关状态并更新本地快照
func (s *PaymentService) checkOnce(ctx context.Context, depositID string) (model.DepositStatus, error) {
	result, err := s.Gateway.DepositStatus(ctx, depositID)
	if err != nil {
		return "", err
	}

	status := mapGatewayStatus(result.Status)
	reason := ""
	if status == model.DepositFailed || status == model.DepositRejected {
		reason = result.RejectionReason.RejectionMessage
	}
	if err := s.TxRepo.UpdateStatus(depositID, status, reason); err != nil {
		return "", err
	}
	return status, nil
}

func mapGatewayStatus(gatewayStatus string) model.DepositStatus {
	switch gatewayStatus {
	case GatewayCompleted:
		return model.DepositCompleted
	case GatewayFailed:
		return model.DepositFailed
	case GatewayRejected:
		return model.DepositRejected
	case GatewayAccepted, GatewaySubmitted:
		return model.DepositPending
	default:
		return model.DepositPending
	}
}

// Refresh 手动触发一次带外查询，返回最新快照
func (s *PaymentService) Refresh(userID uint, depositID string) (*model.Transaction, error) {
	tx, err := s.TxRepo.FindByDepositID(depositID)
	if err != nil {
		return nil, util.ErrDepositNotFound
	}
	if tx.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	if !tx.Status.Terminal() {
		if status, err := s.checkOnce(context.Background(), depositID); err != nil {
			logger.Log.Warn("manual deposit refresh failed",
				zap.String("depositID", depositID), zap.Error(err))
		} else if status.Terminal() {
			s.stopWatcher(depositID)
		}
	}

	return s.TxRepo.FindByDepositID(depositID)
}

// History 用户全部支付记录，新在前
func (s *PaymentService) History(userID uint) ([]model.Transaction, error) {
	return s.TxRepo.ListByUser(userID)
}

// Status 本地快照，不触发网关调用
func (s *PaymentService) Status(userID uint, depositID string) (*model.Transaction, error) {
	tx, err := s.TxRepo.FindByDepositID(depositID)
	if err != nil {
		return nil, util.ErrDepositNotFound
	}
	if tx.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return tx, nil
}

// Activate 用户在看到 completed 后的显式开通动作（不自动触发）：
// 幂等地建购买记录、归因推广成交、发送购买回执通知。
// 归因与通知失败都不阻塞开通本身。
func (s *PaymentService) Activate(userID uint, depositID string) (*model.CoursePurchase, error) {
	tx, err := s.TxRepo.FindByDepositID(depositID)
	if err != nil {
		return nil, util.ErrDepositNotFound
	}
	if tx.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if tx.Status != model.DepositCompleted {
		return nil, util.ErrDepositNotComplete
	}

	// 重复开通返回既有购买记录
	if existing, err := s.PurchaseRepo.Find(userID, tx.CourseID); err == nil {
		return existing, nil
	}

	purchase := &model.CoursePurchase{
		UserID:    userID,
		CourseID:  tx.CourseID,
		Source:    model.PurchaseByPayment,
		DepositID: depositID,
	}
	if err := s.PurchaseRepo.Create(purchase); err != nil {
		return nil, err
	}

	s.Affiliate.RecordConversion(tx.AffiliateCode, tx.CourseID, float64(tx.Amount))

	if user, err := s.UserRepo.FindByID(userID); err == nil {
		if course, err := s.CourseRepo.FindByID(tx.CourseID); err == nil {
			s.Notifications.SendPurchaseReceipt(user, course, tx)
		}
	}
	return purchase, nil
}
