package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
	Import    ImportConfig    `mapstructure:"import"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Sejoli    SejoliConfig    `mapstructure:"sejoli"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 管理端令牌配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
	Issuer      string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AdminRateLimit   RateLimitConfig    `mapstructure:"admin_rate_limit"`
	AdminRoles       []AdminRoleBinding `mapstructure:"admin_roles"`
	DefaultAdminRole string             `mapstructure:"default_admin_role"` // 未分配角色的主体，为空时拒绝
}

// AdminRoleBinding 令牌主体与角色绑定
type AdminRoleBinding struct {
	Subject string `mapstructure:"subject"`
	Role    string `mapstructure:"role"`
}

// RoleAssignments 主体到角色的映射，后出现的覆盖先出现的
func (c SecurityConfig) RoleAssignments() map[string]string {
	assignments := make(map[string]string, len(c.AdminRoles))
	for _, binding := range c.AdminRoles {
		subject := strings.TrimSpace(binding.Subject)
		role := strings.TrimSpace(binding.Role)
		if subject == "" || role == "" {
			continue
		}
		assignments[strings.ToLower(subject)] = role
	}
	return assignments
}

// RateLimitConfig 管理接口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// ImportConfig 旧系统导入配置
type ImportConfig struct {
	RulesFile           string `mapstructure:"rules_file"` // 为空时使用内置规则
	SourceFile          string `mapstructure:"source_file"`
	UsersFile           string `mapstructure:"users_file"`
	AffiliatesFile      string `mapstructure:"affiliates_file"`
	Format              string `mapstructure:"format"` // json / tsv / xlsx
	BatchSize           int    `mapstructure:"batch_size"`
	PlaceholderPassword string `mapstructure:"placeholder_password"`
	LockTTLSeconds      int    `mapstructure:"lock_ttl_seconds"`
	ReviewEstimates     bool   `mapstructure:"review_estimates"` // 估算佣金是否进入人工复核
}

// LockTTL 导入锁有效期
func (c ImportConfig) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ReconcileConfig 对账配置
type ReconcileConfig struct {
	ExpectedTotalsFile string `mapstructure:"expected_totals_file"`
	Cron               string `mapstructure:"cron"` // 为空时不启用定时对账
	ReportDir          string `mapstructure:"report_dir"`
	Tolerance          int64  `mapstructure:"tolerance"` // 金额容差（卢比）
}

// SejoliConfig 旧系统只读 API 配置
type SejoliConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	UsersURL          string `mapstructure:"users_url"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	RequestIntervalMS int    `mapstructure:"request_interval_ms"`
	PerPage           int    `mapstructure:"per_page"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// RequestInterval 请求间隔
func (c SejoliConfig) RequestInterval() time.Duration {
	if c.RequestIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.RequestIntervalMS) * time.Millisecond
}

// Timeout 单次请求超时
func (c SejoliConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load 从 config.yml 加载配置
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debugw("dotenv_not_loaded", "error", err)
	}

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("config unmarshal failed: %w", err))
	}
	return &cfg
}

// LoadFile 从指定文件加载配置
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "migrate.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/migrate.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.issuer", "eksporyuk-migrate")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "eym")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Authorization",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.admin_rate_limit.window_seconds", 60)
	v.SetDefault("security.admin_rate_limit.max_requests", 60)
	v.SetDefault("security.admin_rate_limit.block_seconds", 120)
	v.SetDefault("security.default_admin_role", "auditor")
	v.SetDefault("import.rules_file", "")
	v.SetDefault("import.source_file", "")
	v.SetDefault("import.users_file", "")
	v.SetDefault("import.affiliates_file", "")
	v.SetDefault("import.format", "json")
	v.SetDefault("import.batch_size", 500)
	v.SetDefault("import.placeholder_password", "ekspor123")
	v.SetDefault("import.lock_ttl_seconds", 1800)
	v.SetDefault("import.review_estimates", true)
	v.SetDefault("reconcile.expected_totals_file", "")
	v.SetDefault("reconcile.cron", "")
	v.SetDefault("reconcile.report_dir", "./reports")
	v.SetDefault("reconcile.tolerance", 0)
	v.SetDefault("sejoli.base_url", "")
	v.SetDefault("sejoli.users_url", "")
	v.SetDefault("sejoli.username", "")
	v.SetDefault("sejoli.password", "")
	v.SetDefault("sejoli.request_interval_ms", 1000)
	v.SetDefault("sejoli.per_page", 100)
	v.SetDefault("sejoli.timeout_seconds", 30)

	// 环境变量覆盖，例如 import.batch_size -> IMPORT_BATCH_SIZE
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}
