package controller

import (
	"errors"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	AdminService *service.AdminService
	UserRepo     *repository.UserRepository
}

func NewAdminController(adminService *service.AdminService, userRepo *repository.UserRepository) *AdminController {
	return &AdminController{AdminService: adminService, UserRepo: userRepo}
}

// @Summary 运营看板
// @Description 用户/课程/购买总量、收入、交易状态分布、推广收益榜与最近交易
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/stats [get]
func (c *AdminController) Stats(ctx *gin.Context) {
	stats, err := c.AdminService.Stats()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 用户列表
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/users [get]
func (c *AdminController) ListUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	users, total, err := c.UserRepo.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"list":  users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

// @Summary 启用/禁用用户
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param body body SetDisabledRequest true "禁用标记"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/disabled [put]
func (c *AdminController) SetUserDisabled(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return
	}

	var req SetDisabledRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserRepo.SetDisabled(uint(id), *req.Disabled); err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "disabled": *req.Disabled})
}
