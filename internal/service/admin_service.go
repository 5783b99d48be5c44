package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
)

// AdminService 管理端监控看板的聚合数据
type AdminService struct {
	UserRepo      *repository.UserRepository
	CourseRepo    *repository.CourseRepository
	PurchaseRepo  *repository.PurchaseRepository
	TxRepo        *repository.TransactionRepository
	AffiliateRepo *repository.AffiliateRepository
}

func NewAdminService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	purchaseRepo *repository.PurchaseRepository,
	txRepo *repository.TransactionRepository,
	affiliateRepo *repository.AffiliateRepository,
) *AdminService {
	return &AdminService{
		UserRepo:      userRepo,
		CourseRepo:    courseRepo,
		PurchaseRepo:  purchaseRepo,
		TxRepo:        txRepo,
		AffiliateRepo: affiliateRepo,
	}
}

type DashboardStats struct {
	Users              int64                 `json:"users"`
	Courses            int64                 `json:"courses"`
	Purchases          int64                 `json:"purchases"`
	Revenue            int64                 `json:"revenue"` // 最小货币单位
	TransactionStatus  map[string]int64      `json:"transactionStatus"`
	TopAffiliates      []model.AffiliateLink `json:"topAffiliates"`
	RecentTransactions []model.Transaction   `json:"recentTransactions"`
}

func (s *AdminService) Stats() (*DashboardStats, error) {
	users, err := s.UserRepo.Count()
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseRepo.Count()
	if err != nil {
		return nil, err
	}
	purchases, err := s.PurchaseRepo.Count()
	if err != nil {
		return nil, err
	}
	revenue, err := s.TxRepo.CompletedRevenue()
	if err != nil {
		return nil, err
	}
	breakdown, err := s.TxRepo.StatusBreakdown()
	if err != nil {
		return nil, err
	}
	topAffiliates, err := s.AffiliateRepo.TopByEarnings(10)
	if err != nil {
		return nil, err
	}
	recent, err := s.TxRepo.Recent(20)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		Users:              users,
		Courses:            courses,
		Purchases:          purchases,
		Revenue:            revenue,
		TransactionStatus:  breakdown,
		TopAffiliates:      topAffiliates,
		RecentTransactions: recent,
	}, nil
}
