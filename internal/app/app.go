package app

import (
	"context"
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/controller"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/pkg/database"
	"edu_platform_backend/pkg/logger"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/security"
	"edu_platform_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
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
	sweeper         *service.Sweeper
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	module     *repository.ModuleRepository
	enrollment *repository.EnrollmentRepository
	quiz       *repository.QuizRepository
	attachment *repository.AttachmentRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	module     *service.ModuleService
	enrollment *service.EnrollmentService
	quiz       *service.QuizService
	attachment *service.AttachmentService
}

type controllers struct {
	auth       *controller.AuthController
	module     *controller.ModuleController
	enrollment *controller.EnrollmentController
	quiz       *controller.QuizController
	attachment *controller.AttachmentController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// OnConfigReload 配置文件热更新入口。连接类配置（数据库、存储后端）
// 需要重启才生效，这里只刷新注册过回调的运行时参数。
func (a *App) OnConfigReload(cfg *config.Config) {
	logger.Log.Info("config reloaded")
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		module:     repository.NewModuleRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		quiz:       repository.NewQuizRepository(db),
		attachment: repository.NewAttachmentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.module = service.NewModuleService(repos.module, repos.attachment, repos.quiz, repos.enrollment, s.storage)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.module, repos.user)
	s.quiz = service.NewQuizService(repos.quiz, repos.module, repos.enrollment)
	s.attachment = service.NewAttachmentService(repos.attachment, repos.module, s.storage, rdb, cfg)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		module:     controller.NewModuleController(s.module),
		enrollment: controller.NewEnrollmentController(s.enrollment),
		quiz:       controller.NewQuizController(s.quiz),
		attachment: controller.NewAttachmentController(s.attachment),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 启动临时附件清理任务
func (a *App) startBackgroundTasks(repos *repositories, cfg *config.Config) {
	a.sweeper = service.NewSweeper(
		repos.attachment,
		cfg.Upload.SweepInterval,
		cfg.Upload.RetentionHours,
		cfg.Upload.SweepMaxRetries,
	)
	a.sweeper.Start()

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		a.sweeper.UpdateSettings(newCfg.Upload.RetentionHours, newCfg.Upload.SweepMaxRetries)
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}
	if cfg.MigrateOnly {
		app := &App{Config: cfg, DB: db}
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 只承载编辑会话标记，连不上时降级运行
		logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("edu-platform", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(repos, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

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

	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
