package app

import (
	"context"
	"flashdeck_backend/internal/config"
	"flashdeck_backend/internal/controller"
	"flashdeck_backend/internal/repository"
	"flashdeck_backend/internal/service"
	"flashdeck_backend/internal/util"
	"flashdeck_backend/pkg/database"
	"flashdeck_backend/pkg/logger"
	"flashdeck_backend/pkg/monitoring"
	"flashdeck_backend/pkg/security"
	"flashdeck_backend/pkg/tracing"
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
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services *services
}

type repositories struct {
	user      *repository.UserRepository
	deck      *repository.DeckRepository
	flashcard *repository.FlashcardRepository
	session   *repository.SessionRepository
	attempt   *repository.AttemptRepository
	schedule  *repository.ScheduleRepository
	settings  *repository.SettingsRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	deck      *service.DeckService
	settings  *service.SettingsService
	scheduler *service.SchedulerService
	practice  *service.PracticeService
	notifier  *service.PracticeNotifier
}

type controllers struct {
	auth     *controller.AuthController
	deck     *controller.DeckController
	settings *controller.SettingsController
	practice *controller.PracticeController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		deck:      repository.NewDeckRepository(db),
		flashcard: repository.NewFlashcardRepository(db),
		session:   repository.NewSessionRepository(db),
		attempt:   repository.NewAttemptRepository(db),
		schedule:  repository.NewScheduleRepository(db),
		settings:  repository.NewSettingsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.deck = service.NewDeckService(repos.deck, repos.flashcard, s.storage)
	s.settings = service.NewSettingsService(repos.settings)
	s.scheduler = service.NewSchedulerService(repos.schedule, repos.settings)
	s.practice = service.NewPracticeService(
		repos.deck,
		repos.flashcard,
		repos.session,
		repos.attempt,
		repos.schedule,
		repos.settings,
		s.scheduler,
		db,
	)
	s.notifier = service.NewPracticeNotifier(rdb)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		deck:     controller.NewDeckController(s.deck, s.storage),
		settings: controller.NewSettingsController(s.settings),
		practice: controller.NewPracticeController(s.practice, s.notifier),
		health:   controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
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
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("flashdeck", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
