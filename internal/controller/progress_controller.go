package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

func courseIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return 0, false
	}
	return uint(id), true
}

// @Summary 获取课程进度
// @Description 当前用户在该课程的进度（首次访问自动建初始记录）
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	progress, err := c.ProgressService.Get(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 章节可进入状态
// @Description 按章节顺序返回每章是否可进入（上一章测验通过才解锁）
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/access [get]
func (c *ProgressController) GetChapterAccess(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	access, err := c.ProgressService.ChapterAccess(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"access": access})
}

// @Summary 标记视频已完成
// @Description 幂等：重复标记同一视频不改变集合
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param videoId path int true "视频ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/videos/{videoId}/complete [post]
func (c *ProgressController) MarkVideoComplete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}
	videoID, err := strconv.ParseUint(ctx.Param("videoId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid video ID")
		return
	}

	progress, err := c.ProgressService.MarkVideoComplete(user.UserID, courseID, uint(videoID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

type PositionRequest struct {
	ChapterIndex int `json:"chapterIndex"`
	VideoIndex   int `json:"videoIndex"`
}

// @Summary 更新当前位置
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body PositionRequest true "位置"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/position [put]
func (c *ProgressController) UpdatePosition(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	var req PositionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.UpdatePosition(user.UserID, courseID, req.ChapterIndex, req.VideoIndex)
	if err != nil {
		if err == util.ErrInvalidPosition {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

type WatchTimeRequest struct {
	// 指针区分 0 与缺省
	DeltaMs *int64 `json:"deltaMs" binding:"required"`
}

// @Summary 累加观看时长
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body WatchTimeRequest true "毫秒增量"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/watch-time [post]
func (c *ProgressController) AddWatchTime(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	var req WatchTimeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.AddWatchTime(user.UserID, courseID, *req.DeltaMs)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 重置课程进度
// @Description 空集合、位置 (0,0)、累计时长 0
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/reset [post]
func (c *ProgressController) ResetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	progress, err := c.ProgressService.Reset(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 课程完成状态
// @Description 全部章节测验通过即完成；完成时间戳持久化，证书可查
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress/completion [get]
func (c *ProgressController) GetCompletion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := courseIDParam(ctx)
	if !ok {
		return
	}

	state, err := c.ProgressService.Completion(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 我的全部课程进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/my/progress [get]
func (c *ProgressController) MyProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	list, err := c.ProgressService.MyProgress(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 我的证书
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/my/certificates [get]
func (c *ProgressController) MyCertificates(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.ProgressService.MyCertificates(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}
