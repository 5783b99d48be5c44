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
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const clickDedupeKeyPrefix = "affiliate:click:"

// AffiliateService 推广码的生成与点击/成交归因。
// 归因路径上的任何失败都只记日志：坏掉的推广链接绝不能挡住购买或学习。
type AffiliateService struct {
	AffiliateRepo *repository.AffiliateRepository
	CourseRepo    *repository.CourseRepository
	Redis         *redis.Client
	Config        *config.Config
}

func NewAffiliateService(
	affiliateRepo *repository.AffiliateRepository,
	courseRepo *repository.CourseRepository,
	rdb *redis.Client,
	cfg *config.Config,
) *AffiliateService {
	return &AffiliateService{
		AffiliateRepo: affiliateRepo,
		CourseRepo:    courseRepo,
		Redis:         rdb,
		Config:        cfg,
	}
}

// GenerateCode 同一 (user, course) 只生成一次；返回可分享链接
func (s *AffiliateService) GenerateCode(userID, courseID uint) (*model.AffiliateLink, string, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		return nil, "", util.ErrCourseNotFound
	}

	existing, err := s.AffiliateRepo.FindByUserCourse(userID, courseID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, s.shareLink(existing), nil
	}

	code, err := s.mintCode()
	if err != nil {
		return nil, "", err
	}

	link := &model.AffiliateLink{
		Code:     code,
		UserID:   userID,
		CourseID: courseID,
	}
	if err := s.AffiliateRepo.Create(link); err != nil {
		return nil, "", err
	}
	return link, s.shareLink(link), nil
}

// mintCode UUID 派生的短码，冲突时重试
func (s *AffiliateService) mintCode() (string, error) {
	length := s.Config.Affiliate.CodeLength
	for i := 0; i < 5; i++ {
		raw := strings.ReplaceAll(model.GenerateUUID(), "-", "")
		code := strings.ToUpper(raw[:length])
		exists, err := s.AffiliateRepo.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to mint unique affiliate code")
}

func (s *AffiliateService) shareLink(link *model.AffiliateLink) string {
	return fmt.Sprintf("%s/course/%d?ref=%s", s.Config.Server.FrontendURL, link.CourseID, link.Code)
}

// TrackClick 空码静默忽略；同一 (session, code, course) 只计一次，
// 用 Redis SETNX + TTL 去重而不是依赖前端只触发一次
func (s *AffiliateService) TrackClick(code string, courseID uint, sessionID string) {
	if code == "" {
		return
	}

	if s.Redis != nil && sessionID != "" {
		key := fmt.Sprintf("%s%s:%d:%s", clickDedupeKeyPrefix, code, courseID, sessionID)
		ok, err := s.Redis.SetNX(context.Background(), key, 1, 24*time.Hour).Result()
		if err != nil {
			logger.Log.Warn("affiliate click dedupe unavailable", zap.Error(err))
		} else if !ok {
			return
		}
	}

	link, err := s.AffiliateRepo.FindByCode(code)
	if err != nil {
		logger.Log.Warn("affiliate click for unknown code", zap.String("code", code))
		return
	}
	if link.CourseID != courseID {
		logger.Log.Warn("affiliate click course mismatch",
			zap.String("code", code), zap.Uint("courseID", courseID))
		return
	}

	if err := s.AffiliateRepo.IncrementClicks(code); err != nil {
		logger.Log.Error("affiliate click increment failed", zap.Error(err))
		return
	}
	monitoring.AffiliateEvents.WithLabelValues("click").Inc()
}

// RecordConversion 购买确认时调用一次。grossAmount 为成交全额，
// 入账金额先扣平台抽成。空码为 no-op。
func (s *AffiliateService) RecordConversion(code string, courseID uint, grossAmount float64) {
	if code == "" {
		return
	}

	link, err := s.AffiliateRepo.FindByCode(code)
	if err != nil {
		logger.Log.Warn("affiliate conversion for unknown code", zap.String("code", code))
		return
	}
	if link.CourseID != courseID {
		logger.Log.Warn("affiliate conversion course mismatch",
			zap.String("code", code), zap.Uint("courseID", courseID))
		return
	}

	net := grossAmount * (100 - s.Config.Affiliate.PlatformFeePercent) / 100
	if err := s.AffiliateRepo.RecordConversion(code, net); err != nil {
		logger.Log.Error("affiliate conversion record failed", zap.Error(err))
		return
	}
	monitoring.AffiliateEvents.WithLabelValues("conversion").Inc()
}

func (s *AffiliateService) FindByCode(code string) (*model.AffiliateLink, error) {
	return s.AffiliateRepo.FindByCode(code)
}

// MyLink 返回用户在指定课程的推广码，不存在时返回 (nil, nil)
func (s *AffiliateService) MyLink(userID, courseID uint) (*model.AffiliateLink, error) {
	return s.AffiliateRepo.FindByUserCourse(userID, courseID)
}
