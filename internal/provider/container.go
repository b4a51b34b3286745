package provider

import (
	"fmt"
	"strings"

	"github.com/eksporyuk-migrate/internal/authz"
	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/metrics"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/queue"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/rules"
	"github.com/eksporyuk-migrate/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Metrics     *metrics.Metrics
	Rules       *rules.RuleSet
	Authz       *authz.Service

	// Repositories
	UserRepo        *repository.GormUserRepository
	TransactionRepo *repository.GormTransactionRepository
	AffiliateRepo   *repository.GormAffiliateRepository
	WalletRepo      *repository.GormWalletRepository
	MembershipRepo  *repository.GormMembershipRepository
	ReviewRepo      *repository.GormReviewRepository
	ImportRunRepo   *repository.GormImportRunRepository
	ReportRepo      *repository.GormReportRepository

	// Services
	WalletService         *service.WalletService
	MembershipService     *service.MembershipService
	AffiliateService      *service.AffiliateService
	ImportService         *service.ImportService
	UserImportService     *service.UserImportService
	ConversionSyncService *service.ConversionSyncService
	ReconcileService      *service.ReconcileService
	ReviewService         *service.ReviewService
	AdminTokenService     *service.AdminTokenService
	ReportExporter        *service.ReportExporter
	Pipeline              *service.Pipeline
}

// NewContainer 初始化容器；db 为空时使用全局连接
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if db == nil {
		db = models.DB
	}
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient = &queue.Client{}
	}

	rs, err := loadRules(cfg.Import.RulesFile)
	if err != nil {
		return nil, err
	}

	authzService, err := initAuthz(db, cfg.Security)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
		Metrics:     metrics.Default(),
		Rules:       rs,
		Authz:       authzService,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	logger.Infow("provider_ready",
		"rules_version", rs.Version(),
		"redis_enabled", cache.Enabled(),
		"queue_enabled", queueClient.Enabled(),
	)
	return c, nil
}

func initAuthz(db *gorm.DB, cfg config.SecurityConfig) (*authz.Service, error) {
	svc, err := authz.NewService(db, cfg.DefaultAdminRole)
	if err != nil {
		return nil, err
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		return nil, err
	}
	if err := svc.ApplyAdminRoles(cfg.RoleAssignments()); err != nil {
		return nil, err
	}
	return svc, nil
}

func loadRules(path string) (*rules.RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return rules.LoadDefault()
	}
	rs, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return rs, nil
}

func (c *Container) initRepositories() {
	db := c.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.TransactionRepo = repository.NewTransactionRepository(db)
	c.AffiliateRepo = repository.NewAffiliateRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.MembershipRepo = repository.NewMembershipRepository(db)
	c.ReviewRepo = repository.NewReviewRepository(db)
	c.ImportRunRepo = repository.NewImportRunRepository(db)
	c.ReportRepo = repository.NewReportRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.WalletService = service.NewWalletService(c.WalletRepo)
	c.MembershipService = service.NewMembershipService(c.MembershipRepo, c.UserRepo)
	c.AffiliateService = service.NewAffiliateService(c.AffiliateRepo, c.WalletService)
	c.ImportService = service.NewImportService(
		c.DB,
		c.Rules,
		c.UserRepo,
		c.TransactionRepo,
		c.AffiliateRepo,
		c.ReviewRepo,
		c.ImportRunRepo,
		c.AffiliateService,
		c.MembershipService,
		c.Metrics,
		service.ImportOptions{
			BatchSize:       cfg.Import.BatchSize,
			LockTTL:         cfg.Import.LockTTL(),
			ReviewEstimates: cfg.Import.ReviewEstimates,
		},
	)
	c.UserImportService = service.NewUserImportService(c.DB, c.UserRepo, c.WalletRepo, cfg.Import.PlaceholderPassword)
	c.ConversionSyncService = service.NewConversionSyncService(c.DB, c.TransactionRepo, c.AffiliateService, c.Metrics, 0)
	c.ReconcileService = service.NewReconcileService(c.ReportRepo, c.ReviewRepo, c.Metrics)
	c.ReviewService = service.NewReviewService(c.ReviewRepo)
	c.AdminTokenService = service.NewAdminTokenService(cfg.JWT)
	c.ReportExporter = service.NewReportExporter()
	c.Pipeline = service.NewPipeline(
		c.ImportService,
		c.UserImportService,
		c.ConversionSyncService,
		c.ReconcileService,
		c.ReportExporter,
		cfg.Import,
		cfg.Reconcile,
	)
}

// Close 释放队列客户端
func (c *Container) Close() error {
	if c == nil || c.QueueClient == nil {
		return nil
	}
	return c.QueueClient.Close()
}
