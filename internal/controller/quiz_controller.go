package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

type StartQuizRequest struct {
	CourseID  uint `json:"courseId" binding:"required"`
	ChapterID uint `json:"chapterId" binding:"required"`
}

// @Summary 开始章节测验
// @Description 已有未超时的进行中答卷则继续；超时答卷先自动交卷再开新卷（重考）
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body StartQuizRequest true "课程与章节"
// @Success 200 {object} util.Response
// @Router /api/quiz/start [post]
func (c *QuizController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, questions, err := c.QuizService.Start(user.UserID, req.CourseID, req.ChapterID)
	if err != nil {
		switch err {
		case util.ErrChapterNotFound, util.ErrCourseNotFound:
			util.NotFound(ctx, err.Error())
		case util.ErrChapterLocked:
			util.Forbidden(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{
		"attempt":   attempt,
		"questions": questions, // Answer 字段不序列化
	})
}

type AnswerRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
	Answer     *int `json:"answer" binding:"required"`
}

// @Summary 作答
// @Description 截止前可覆盖同一题的答案
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path int true "答卷ID"
// @Param body body AnswerRequest true "题目与选项下标"
// @Success 200 {object} util.Response
// @Router /api/quiz/attempts/{attemptId}/answer [post]
func (c *QuizController) Answer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID, err := strconv.ParseUint(ctx.Param("attemptId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.QuizService.Answer(user.UserID, uint(attemptID), req.QuestionID, *req.Answer)
	if err != nil {
		switch err {
		case util.ErrAttemptNotFound:
			util.NotFound(ctx, err.Error())
		case util.ErrAttemptClosed, util.ErrAttemptExpired:
			util.Conflict(ctx, err.Error())
		case util.ErrQuestionNotInQuiz, util.ErrInvalidAnswer:
			util.BadRequest(ctx, err.Error())
		case util.ErrPermissionDenied:
			util.Forbidden(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 交卷
// @Description 按得分点加权评分，未答记错；≥70 通过并写入课程进度
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param attemptId path int true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/attempts/{attemptId}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID, err := strconv.ParseUint(ctx.Param("attemptId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}

	result, err := c.QuizService.Submit(user.UserID, uint(attemptID))
	if err != nil {
		switch err {
		case util.ErrAttemptNotFound:
			util.NotFound(ctx, err.Error())
		case util.ErrAttemptClosed:
			util.Conflict(ctx, err.Error())
		case util.ErrPermissionDenied:
			util.Forbidden(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}
