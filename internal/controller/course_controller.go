package controller

import (
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// @Summary 课程目录
// @Description 已发布课程分页（带 Redis 短缓存）
// @Tags 课程
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response
// @Router /api/courses [get]
func (c *CourseController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	courses, total, err := c.CourseService.Catalog(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"list":  courses,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// @Summary 课程详情
// @Description 含按 order 排序的章节、视频与题目（题目不含答案）
// @Tags 课程
// @Produce json
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) Detail(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	// 游客为 nil，带合法 token 的作者可预览草稿
	course, err := c.CourseService.Detail(uint(id), util.GetUserFromContext(ctx))
	if err != nil {
		if err == util.ErrCourseNotFound {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Level       string `json:"level"`
	CoverURL    string `json:"coverUrl"`
}

// @Summary 创建课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateCourseRequest true "课程信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses [post]
func (c *CourseController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: user.UserID,
		Price:        req.Price,
		Currency:     req.Currency,
		Level:        req.Level,
		CoverURL:     req.CoverURL,
	}
	if err := c.CourseService.Create(course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 更新课程
// @Description 仅课程讲师或管理员；发布开关也在这里
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body model.Course true "课程信息"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id} [put]
func (c *CourseController) Update(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	var course model.Course
	if err := ctx.ShouldBindJSON(&course); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course.ID = uint(id)

	if err := c.CourseService.Update(user.UserID, user.Role, &course); err != nil {
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary 讲师名下课程
// @Description 含未发布课程
// @Tags 课程管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/instructor/courses [get]
func (c *CourseController) InstructorCourses(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courses, err := c.CourseService.MyCourses(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

type SetPublishedRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// @Summary 发布/下架课程
// @Description 发布后课程视频进入不可变状态
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body SetPublishedRequest true "发布标记"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id}/published [put]
func (c *CourseController) SetPublished(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	var req SetPublishedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.SetPublished(user.UserID, user.Role, uint(courseID), *req.Published)
	if err != nil {
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

type AddChapterRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// @Summary 添加章节
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body AddChapterRequest true "章节信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses/{id}/chapters [post]
func (c *CourseController) AddChapter(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	var req AddChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapter := &model.Chapter{
		CourseID:    uint(courseID),
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
	}
	if err := c.CourseService.AddChapter(user.UserID, user.Role, chapter); err != nil {
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Created(ctx, chapter)
}

type AddQuestionRequest struct {
	Type        model.QuestionType `json:"type" binding:"required"`
	Prompt      string             `json:"prompt" binding:"required"`
	Options     []string           `json:"options"`
	Answer      *int               `json:"answer" binding:"required"`
	Points      int                `json:"points"`
	Difficulty  string             `json:"difficulty"`
	Explanation string             `json:"explanation"`
}

// @Summary 添加测验题
// @Description 答案下标在创作时即按题型校验
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Param body body AddQuestionRequest true "题目信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/chapters/{chapterId}/questions [post]
func (c *CourseController) AddQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	chapterID, err := strconv.ParseUint(ctx.Param("chapterId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid chapter ID")
		return
	}

	var req AddQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	points := req.Points
	if points <= 0 {
		points = 1
	}
	question := &model.QuizQuestion{
		ChapterID:   uint(chapterID),
		Type:        req.Type,
		Prompt:      req.Prompt,
		Options:     req.Options,
		Answer:      *req.Answer,
		Points:      points,
		Difficulty:  req.Difficulty,
		Explanation: req.Explanation,
	}
	if err := c.CourseService.AddQuestion(user.UserID, user.Role, question); err != nil {
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary 上传章节视频
// @Description multipart 上传；服务端探测时长、生成缩略图后推到对象存储。已发布课程的视频不可变
// @Tags 课程管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Param title formData string true "视频标题"
// @Param order formData int false "顺序"
// @Param file formData file true "视频文件"
// @Success 201 {object} util.Response
// @Router /api/instructor/chapters/{chapterId}/videos [post]
func (c *CourseController) UploadVideo(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	chapterID, err := strconv.ParseUint(ctx.Param("chapterId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid chapter ID")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "Missing video file")
		return
	}
	order, _ := strconv.Atoi(ctx.PostForm("order"))

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("upload_%s%s", model.GenerateUUID(), filepath.Ext(file.Filename)))
	if err := ctx.SaveUploadedFile(file, tempPath); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.Remove(tempPath)

	video := &model.Video{
		ChapterID: uint(chapterID),
		Title:     ctx.PostForm("title"),
		Order:     order,
	}
	created, err := c.CourseService.UploadVideo(user.UserID, user.Role, video, tempPath)
	if err != nil {
		if err == util.ErrVideoImmutable {
			util.Conflict(ctx, err.Error())
			return
		}
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Created(ctx, created)
}

type UpdateVideoRequest struct {
	Title string `json:"title"`
	Order *int   `json:"order"`
}

// @Summary 更新视频元数据
// @Description 仅标题与顺序；课程发布后拒绝
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param videoId path int true "视频ID"
// @Param body body UpdateVideoRequest true "视频信息"
// @Success 200 {object} util.Response
// @Router /api/instructor/videos/{videoId} [put]
func (c *CourseController) UpdateVideo(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	videoID, err := strconv.ParseUint(ctx.Param("videoId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid video ID")
		return
	}

	var req UpdateVideoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	order := -1
	if req.Order != nil {
		order = *req.Order
	}

	video, err := c.CourseService.UpdateVideo(user.UserID, user.Role, uint(videoID), req.Title, order)
	if err != nil {
		if err == util.ErrVideoImmutable {
			util.Conflict(ctx, err.Error())
			return
		}
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Success(ctx, video)
}

type CreateRedeemCodeRequest struct {
	Code    string `json:"code"`
	MaxUses int    `json:"maxUses"`
}

// @Summary 签发兑换码
// @Description 码留空则自动生成
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body CreateRedeemCodeRequest true "兑换码参数"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses/{id}/redeem-codes [post]
func (c *CourseController) CreateRedeemCode(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	var req CreateRedeemCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	rc, err := c.CourseService.CreateRedeemCode(user.UserID, user.Role, uint(courseID), req.Code, req.MaxUses)
	if err != nil {
		c.respondAuthoringError(ctx, err)
		return
	}
	util.Created(ctx, rc)
}

// @Summary 兑换码预览
// @Description 兑换前查看码对应的课程与剩余次数，公开接口
// @Tags 课程
// @Produce json
// @Param code path string true "兑换码"
// @Success 200 {object} util.Response
// @Router /api/redeem-codes/{code} [get]
func (c *CourseController) RedeemPreview(ctx *gin.Context) {
	code := ctx.Param("code")

	rc, course, err := c.CourseService.RedeemPreview(code)
	if err != nil {
		if err == util.ErrRedeemCodeInvalid || err == util.ErrCourseNotFound {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"courseId":    course.ID,
		"courseTitle": course.Title,
		"remaining":   rc.MaxUses - rc.UsedCount,
	})
}

// @Summary 我的已开通课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/my/purchases [get]
func (c *CourseController) MyPurchases(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	purchases, err := c.CourseService.MyPurchases(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, purchases)
}

type RedeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary 兑换码开通课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RedeemRequest true "兑换码"
// @Success 200 {object} util.Response
// @Router /api/courses/redeem [post]
func (c *CourseController) Redeem(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RedeemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	purchase, err := c.CourseService.Redeem(user.UserID, req.Code)
	if err != nil {
		switch err {
		case util.ErrRedeemCodeInvalid:
			util.NotFound(ctx, err.Error())
		case util.ErrRedeemCodeUsedUp, util.ErrAlreadyPurchased:
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, purchase)
}

// @Summary 领取免费课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/claim [post]
func (c *CourseController) ClaimFree(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	purchase, err := c.CourseService.ClaimFree(user.UserID, uint(courseID))
	if err != nil {
		switch err {
		case util.ErrCourseNotFound:
			util.NotFound(ctx, err.Error())
		case util.ErrCourseNotFree:
			util.BadRequest(ctx, err.Error())
		case util.ErrAlreadyPurchased:
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, purchase)
}

// @Summary 是否有课程访问权
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/access [get]
func (c *CourseController) HasAccess(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	hasAccess, err := c.CourseService.HasAccess(user.UserID, uint(courseID))
	if err != nil {
		if err == util.ErrCourseNotFound {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"hasAccess": hasAccess})
}

func (c *CourseController) respondAuthoringError(ctx *gin.Context, err error) {
	switch err {
	case util.ErrCourseNotFound, util.ErrChapterNotFound:
		util.NotFound(ctx, err.Error())
	case util.ErrPermissionDenied:
		util.Forbidden(ctx, err.Error())
	case util.ErrInvalidAnswer:
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
