package controller

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary 注册
// @Description 创建学员账号
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "注册信息"
// @Success 201 {object} util.Response
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Student,
	}
	if err := c.AuthService.Register(user); err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			util.Conflict(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"id": user.ID})
}

// @Summary 登录
// @Description 邮箱密码换取 JWT
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		util.Error(ctx, 401, err.Error())
		return
	}

	util.Success(ctx, gin.H{"token": token})
}

// @Summary 当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	util.Success(ctx, user)
}
