package service

import (
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NotificationService 向内部通知端点投递购买回执，fire-and-forget：
// 投递失败只记日志，绝不回传给购买流程
type NotificationService struct {
	http *resty.Client
	cfg  config.NotificationConfig
}

func NewNotificationService(cfg config.NotificationConfig) *NotificationService {
	client := resty.New().
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json")
	return &NotificationService{http: client, cfg: cfg}
}

type purchaseReceipt struct {
	User        *model.User        `json:"user"`
	Course      *model.Course      `json:"course"`
	Transaction *model.Transaction `json:"transaction"`
}

func (s *NotificationService) SendPurchaseReceipt(user *model.User, course *model.Course, tx *model.Transaction) {
	if s.cfg.Endpoint == "" {
		return
	}

	payload := &purchaseReceipt{User: user, Course: course, Transaction: tx}
	go func() {
		resp, err := s.http.R().SetBody(payload).Post(s.cfg.Endpoint)
		if err != nil {
			logger.Log.Warn("purchase receipt dispatch failed", zap.Error(err))
			return
		}
		if resp.IsError() {
			logger.Log.Warn("purchase receipt rejected",
				zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
		}
	}()
}
