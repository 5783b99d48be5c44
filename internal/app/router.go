package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerInstructorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 课程目录对游客开放，详情带可选登录：作者可预览草稿
		public.GET("/courses", c.course.List)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(cfg), c.course.Detail)

		// 兑换码预览（兑换本身需要登录）
		public.GET("/redeem-codes/:code", c.course.RedeemPreview)

		// 推广点击落地页打点，无需登录
		public.GET("/affiliate/click", c.affiliate.TrackClick)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 我的学习数据
	rg.GET("/my/purchases", c.course.MyPurchases)
	rg.GET("/my/progress", c.progress.MyProgress)
	rg.GET("/my/certificates", c.progress.MyCertificates)

	// 课程开通
	rg.GET("/courses/:id/access", c.course.HasAccess)
	rg.POST("/courses/:id/claim", c.course.ClaimFree)
	rg.POST("/courses/redeem", c.course.Redeem)

	// 学习进度
	rg.GET("/courses/:id/progress", c.progress.GetProgress)
	rg.GET("/courses/:id/progress/access", c.progress.GetChapterAccess)
	rg.GET("/courses/:id/progress/completion", c.progress.GetCompletion)
	rg.POST("/courses/:id/progress/videos/:videoId/complete", c.progress.MarkVideoComplete)
	rg.PUT("/courses/:id/progress/position", c.progress.UpdatePosition)
	rg.POST("/courses/:id/progress/watch-time", c.progress.AddWatchTime)
	rg.POST("/courses/:id/progress/reset", c.progress.ResetProgress)

	// 章节测验
	rg.POST("/quiz/start", c.quiz.Start)
	rg.POST("/quiz/attempts/:attemptId/answer", c.quiz.Answer)
	rg.POST("/quiz/attempts/:attemptId/submit", c.quiz.Submit)

	// 推广
	rg.POST("/affiliate/codes", c.affiliate.GenerateCode)
	rg.GET("/affiliate/codes/:courseId", c.affiliate.GetMyLink)

	// 支付
	rg.GET("/payments", c.payment.History)
	rg.POST("/payments", c.payment.Initiate)
	rg.GET("/payments/:depositId", c.payment.Status)
	rg.POST("/payments/:depositId/refresh", c.payment.Refresh)
	rg.POST("/payments/:depositId/activate", c.payment.Activate)
}

func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	instructor := rg.Group("/instructor")
	instructor.Use(middleware.RoleMiddleware(model.Instructor, model.Admin))
	{
		instructor.GET("/courses", c.course.InstructorCourses)
		instructor.POST("/courses", c.course.Create)
		instructor.PUT("/courses/:id", c.course.Update)
		instructor.PUT("/courses/:id/published", c.course.SetPublished)
		instructor.POST("/courses/:id/chapters", c.course.AddChapter)
		instructor.POST("/courses/:id/redeem-codes", c.course.CreateRedeemCode)
		instructor.POST("/chapters/:chapterId/questions", c.course.AddQuestion)
		instructor.POST("/chapters/:chapterId/videos", c.course.UploadVideo)
		instructor.PUT("/videos/:videoId", c.course.UpdateVideo)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/stats", c.admin.Stats)
		admin.GET("/users", c.admin.ListUsers)
		admin.PUT("/users/:id/disabled", c.admin.SetUserDisabled)
	}
}
