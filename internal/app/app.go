package app

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/pkg/configwatcher"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	progress    *repository.ProgressRepository
	quiz        *repository.QuizRepository
	affiliate   *repository.AffiliateRepository
	transaction *repository.TransactionRepository
	purchase    *repository.PurchaseRepository
	certificate *repository.CertificateRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	course       *service.CourseService
	progress     *service.ProgressService
	quiz         *service.QuizService
	affiliate    *service.AffiliateService
	payment      *service.PaymentService
	notification *service.NotificationService
	admin        *service.AdminService
}

type controllers struct {
	auth      *controller.AuthController
	course    *controller.CourseController
	progress  *controller.ProgressController
	quiz      *controller.QuizController
	affiliate *controller.AffiliateController
	payment   *controller.PaymentController
	admin     *controller.AdminController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		progress:    repository.NewProgressRepository(db),
		quiz:        repository.NewQuizRepository(db),
		affiliate:   repository.NewAffiliateRepository(db),
		transaction: repository.NewTransactionRepository(db),
		purchase:    repository.NewPurchaseRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course, repos.purchase, s.storage, rdb, cfg)
	s.progress = service.NewProgressService(repos.progress, repos.course, repos.quiz, repos.certificate)
	s.quiz = service.NewQuizService(repos.quiz, repos.course, s.progress)
	s.affiliate = service.NewAffiliateService(repos.affiliate, repos.course, rdb, cfg)
	s.notification = service.NewNotificationService(cfg.Notification)
	s.payment = service.NewPaymentService(
		repos.transaction,
		repos.purchase,
		repos.course,
		repos.user,
		s.affiliate,
		s.notification,
		service.NewGatewayClient(cfg.Payment),
		cfg,
	)
	s.admin = service.NewAdminService(repos.user, repos.course, repos.purchase, repos.transaction, repos.affiliate)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		course:    controller.NewCourseController(s.course),
		progress:  controller.NewProgressController(s.progress),
		quiz:      controller.NewQuizController(s.quiz),
		affiliate: controller.NewAffiliateController(s.affiliate),
		payment:   controller.NewPaymentController(s.payment),
		admin:     controller.NewAdminController(s.admin, repos.user),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	// 过期测验扫描：到时未交卷的按已答题目判卷
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			if err := s.quiz.CloseExpiredAttempts(); err != nil {
				logger.Log.Error("expired attempt sweep error", zap.Error(err))
			}
		}
	}()

	// 进程重启后恢复未到终态存款单的轮询
	go func() {
		if err := s.payment.ResumePolling(); err != nil {
			logger.Log.Error("resume deposit polling error", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("lms-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	// 配置热更新：文件写入后覆写共享配置，服务按指针读到新值
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		*cfg = *newCfg
	})
	go configwatcher.WatchConfig(filepath.Join("configs", "config.yaml"), func(raw interface{}) {
		newCfg, ok := raw.(*config.Config)
		if !ok {
			return
		}
		for _, cb := range app.configCallbacks {
			cb(newCfg)
		}
		logger.Log.Info("Config reloaded")
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 停掉所有存款单轮询协程
	if a.services != nil && a.services.payment != nil {
		a.services.payment.StopAll()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
