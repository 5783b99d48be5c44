package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AffiliateController struct {
	AffiliateService *service.AffiliateService
}

func NewAffiliateController(affiliateService *service.AffiliateService) *AffiliateController {
	return &AffiliateController{AffiliateService: affiliateService}
}

type GenerateCodeRequest struct {
	CourseID uint `json:"courseId" binding:"required"`
}

// @Summary 生成推广码
// @Description 同一 (用户, 课程) 始终返回同一个码
// @Tags 推广
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GenerateCodeRequest true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/affiliate/codes [post]
func (c *AffiliateController) GenerateCode(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req GenerateCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	link, shareURL, err := c.AffiliateService.GenerateCode(user.UserID, req.CourseID)
	if err != nil {
		if err == util.ErrCourseNotFound {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"link":     link,
		"shareUrl": shareURL,
	})
}

// @Summary 记录推广点击
// @Description 公开接口；同会话 24 小时内对同一码只计一次，任何失败都不影响响应
// @Tags 推广
// @Produce json
// @Param code query string true "推广码"
// @Param courseId query int true "课程ID"
// @Param sessionId query string true "会话标识"
// @Success 200 {object} util.Response
// @Router /api/affiliate/click [get]
func (c *AffiliateController) TrackClick(ctx *gin.Context) {
	code := ctx.Query("code")
	sessionID := ctx.Query("sessionId")
	courseID, _ := strconv.ParseUint(ctx.Query("courseId"), 10, 32)

	// 点击统计对访客永远成功，内部错误只记日志
	c.AffiliateService.TrackClick(code, uint(courseID), sessionID)
	util.Success(ctx, nil)
}

// @Summary 我的推广码
// @Description 当前用户在指定课程的码及点击/成交统计
// @Tags 推广
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/affiliate/codes/{courseId} [get]
func (c *AffiliateController) GetMyLink(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("courseId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	link, err := c.AffiliateService.MyLink(user.UserID, uint(courseID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if link == nil {
		util.NotFound(ctx, "No affiliate code for this course")
		return
	}
	util.Success(ctx, link)
}
