package service

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"time"

	"github.com/go-resty/resty/v2"
)

// 网关侧的存款状态字面量
const (
	GatewayAccepted         = "ACCEPTED"
	GatewaySubmitted        = "SUBMITTED"
	GatewayCompleted        = "COMPLETED"
	GatewayFailed           = "FAILED"
	GatewayRejected         = "REJECTED"
	GatewayDuplicateIgnored = "DUPLICATE_IGNORED"
)

// GatewayClient 移动支付网关的 HTTP 客户端（deposit API）
type GatewayClient struct {
	http *resty.Client
	cfg  config.PaymentConfig
}

func NewGatewayClient(cfg config.PaymentConfig) *GatewayClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIToken).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &GatewayClient{http: client, cfg: cfg}
}

// DepositRequest 发起一笔移动支付扣款
type DepositRequest struct {
	DepositID            string            `json:"depositId"`
	Amount               string            `json:"amount"`
	Currency             string            `json:"currency"`
	Correspondent        string            `json:"correspondent"`
	Payer                DepositPayer      `json:"payer"`
	CustomerTimestamp    string            `json:"customerTimestamp"`
	StatementDescription string            `json:"statementDescription"`
	Country              string            `json:"country"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

type DepositPayer struct {
	Type    string `json:"type"`
	Address struct {
		Value string `json:"value"`
	} `json:"address"`
}

// DepositResult 网关对发起/查询请求的应答
type DepositResult struct {
	DepositID       string `json:"depositId"`
	Status          string `json:"status"`
	RejectionReason struct {
		RejectionCode    string `json:"rejectionCode"`
		RejectionMessage string `json:"rejectionMessage"`
	} `json:"rejectionReason"`
}

// CreateDeposit 单次发起调用，重试与 deposit id 轮换由调用方负责
func (g *GatewayClient) CreateDeposit(ctx context.Context, req *DepositRequest) (*DepositResult, error) {
	var result DepositResult
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/deposits")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway deposit create failed (status %d): %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// DepositStatus 按 id 查询一笔存款的当前状态
func (g *GatewayClient) DepositStatus(ctx context.Context, depositID string) (*DepositResult, error) {
	var results []DepositResult
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&results).
		Get("/deposits/" + depositID)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway deposit status failed (status %d): %s", resp.StatusCode(), resp.String())
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("gateway returned no record for deposit %s", depositID)
	}
	return &results[0], nil
}

// NewDepositRequest 按配置组装一笔请求体
func (g *GatewayClient) NewDepositRequest(depositID string, amount int64, correspondent, phone, description string) *DepositRequest {
	req := &DepositRequest{
		DepositID:            depositID,
		Amount:               fmt.Sprintf("%d", amount),
		Currency:             g.cfg.Currency,
		Correspondent:        correspondent,
		CustomerTimestamp:    time.Now().UTC().Format(time.RFC3339),
		StatementDescription: description,
		Country:              g.cfg.Country,
	}
	req.Payer.Type = "MSISDN"
	req.Payer.Address.Value = phone
	return req
}
