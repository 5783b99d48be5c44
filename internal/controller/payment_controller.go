package controller

import (
	"errors"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	PaymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{PaymentService: paymentService}
}

type InitiatePaymentRequest struct {
	CourseID      uint   `json:"courseId" binding:"required"`
	Correspondent string `json:"correspondent" binding:"required"` // 运营商通道，如 MTN_MOMO_ZMB
	Phone         string `json:"phone" binding:"required"`
	AffiliateCode string `json:"affiliateCode"`
}

// @Summary 发起移动支付
// @Description 创建存款单并启动后台轮询；网关返回 DUPLICATE_IGNORED 时换新单号重试（最多 3 次）
// @Tags 支付
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InitiatePaymentRequest true "支付参数"
// @Success 201 {object} util.Response
// @Router /api/payments [post]
func (c *PaymentController) Initiate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req InitiatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tx, err := c.PaymentService.Initiate(user.UserID, req.CourseID, req.Correspondent, req.Phone, req.AffiliateCode)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx, err.Error())
		case errors.Is(err, util.ErrAlreadyPurchased):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrCourseNotFree), errors.Is(err, util.ErrDepositRejected):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, tx)
}

// @Summary 我的支付记录
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/payments [get]
func (c *PaymentController) History(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	txs, err := c.PaymentService.History(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, txs)
}

// @Summary 查询支付状态
// @Description 返回本地快照，不打网关；后台轮询负责同步
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param depositId path string true "存款单号"
// @Success 200 {object} util.Response
// @Router /api/payments/{depositId} [get]
func (c *PaymentController) Status(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	tx, err := c.PaymentService.Status(user.UserID, ctx.Param("depositId"))
	if err != nil {
		c.respondPaymentError(ctx, err)
		return
	}
	util.Success(ctx, tx)
}

// @Summary 手动刷新支付状态
// @Description 立即向网关查一次并更新本地快照
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param depositId path string true "存款单号"
// @Success 200 {object} util.Response
// @Router /api/payments/{depositId}/refresh [post]
func (c *PaymentController) Refresh(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	tx, err := c.PaymentService.Refresh(user.UserID, ctx.Param("depositId"))
	if err != nil {
		c.respondPaymentError(ctx, err)
		return
	}
	util.Success(ctx, tx)
}

// @Summary 确认开通课程
// @Description 支付完成后由客户端显式调用；开通幂等，并在此刻结算推广分成
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param depositId path string true "存款单号"
// @Success 200 {object} util.Response
// @Router /api/payments/{depositId}/activate [post]
func (c *PaymentController) Activate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	purchase, err := c.PaymentService.Activate(user.UserID, ctx.Param("depositId"))
	if err != nil {
		c.respondPaymentError(ctx, err)
		return
	}
	util.Success(ctx, purchase)
}

func (c *PaymentController) respondPaymentError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrDepositNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx, err.Error())
	case errors.Is(err, util.ErrDepositNotComplete), errors.Is(err, util.ErrDepositRejected):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
