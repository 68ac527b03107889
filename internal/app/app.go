package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursewise_backend/internal/config"
	"coursewise_backend/internal/controller"
	"coursewise_backend/internal/repository"
	"coursewise_backend/internal/service"
	"coursewise_backend/pkg/database"
	"coursewise_backend/pkg/logger"
	"coursewise_backend/pkg/monitoring"
	"coursewise_backend/pkg/security"
	"coursewise_backend/pkg/tracing"

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
	repos           *repositories
	configCallbacks []func(*config.Config)
}

type repositories struct {
	student    *repository.StudentRepository
	course     *repository.CourseRepository
	curriculum *repository.CurriculumRepository
}

type services struct {
	analyzer       *service.AnalyzerService
	rules          *service.RulesService
	contextSvc     *service.ContextService
	llm            *service.LLMService
	parser         *service.Parser
	gradeParser    *service.GradeParser
	recommendation *service.RecommendationService
	student        *service.StudentService
}

type controllers struct {
	student        *controller.StudentController
	recommendation *controller.RecommendationController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) (*repositories, error) {
	curriculum, err := repository.NewCurriculumRepository(&cfg.Data, rdb)
	if err != nil {
		return nil, err
	}
	return &repositories{
		student:    repository.NewStudentRepository(db),
		course:     repository.NewCourseRepository(db),
		curriculum: curriculum,
	}, nil
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.llm = service.NewLLMService(cfg.AI)
	s.parser = service.NewParser()
	s.gradeParser = service.NewGradeParser(s.llm)

	s.analyzer = service.NewAnalyzerService(repos.student, repos.curriculum)
	s.rules = service.NewRulesService(repos.curriculum)
	s.contextSvc = service.NewContextService(s.analyzer, s.rules, repos.curriculum)
	s.recommendation = service.NewRecommendationService(s.contextSvc, s.rules, s.llm, s.parser)
	s.student = service.NewStudentService(repos.student, repos.course, s.gradeParser)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		student:        controller.NewStudentController(s.student, s.analyzer),
		recommendation: controller.NewRecommendationController(s.recommendation, s.analyzer, s.rules),
		health:         controller.NewHealthController(db, s.llm),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Reference-data reads fall back to the object store directly.
		logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos, err := app.initRepositories(db, rdb, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize repositories", zap.Error(err))
	}
	app.repos = repos
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("coursewise-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers)

	// Reference data edits (offerings, charts) take effect on next read.
	app.RegisterConfigCallback(func(*config.Config) {
		repos.curriculum.Invalidate()
	})

	return app
}

// ApplyConfig runs registered reload callbacks with a freshly parsed
// configuration.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Configuration reloaded")
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
