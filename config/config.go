package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sujith-eag/timetable-builder/internal/engine"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Calendar CalendarConfig `mapstructure:"calendar"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	RateLimit    int        `mapstructure:"rate_limit"` // 每 IP 每分钟求解请求数
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Trace  bool   `mapstructure:"trace"` // 以 debug 级别输出每次放置/撤销
}

// SolverConfig 排课引擎配置
type SolverConfig struct {
	MaxBacktracks  int                `mapstructure:"max_backtracks"`
	WallClockLimit time.Duration      `mapstructure:"wall_clock_limit"`
	RandomSeed     int64              `mapstructure:"random_seed"`
	Improve        bool               `mapstructure:"improve"`
	SoftWeights    map[string]float64 `mapstructure:"soft_weights"`
	Attempts       int                `mapstructure:"attempts"`
	Strategy       string             `mapstructure:"strategy"`
}

// EngineConfig 转换为引擎配置
func (c SolverConfig) EngineConfig() engine.Config {
	weights := make(map[string]float64, len(c.SoftWeights))
	for k, v := range c.SoftWeights {
		weights[k] = v
	}
	return engine.Config{
		MaxBacktracks:        c.MaxBacktracks,
		WallClockLimit:       c.WallClockLimit,
		RandomSeed:           c.RandomSeed,
		SoftConstraintWeight: weights,
		Improve:              c.Improve,
	}
}

// PortfolioConfig 转换为组合求解配置
func (c SolverConfig) PortfolioConfig() engine.PortfolioConfig {
	return engine.PortfolioConfig{Attempts: c.Attempts, Strategy: engine.Strategy(c.Strategy)}
}

// CacheConfig 求解结果缓存配置
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CalendarConfig ICS 导入导出配置
type CalendarConfig struct {
	TimeZone  string `mapstructure:"time_zone"`
	WeekStart string `mapstructure:"week_start"` // 导出日历的参考周一，YYYY-MM-DD
	Weeks     int    `mapstructure:"weeks"`      // 导出日历的重复周数
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "timetable")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "timetable-builder")
	v.SetDefault("auth.token_ttl", "720h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.trace", false)

	v.SetDefault("solver.max_backtracks", 100000)
	v.SetDefault("solver.wall_clock_limit", "30s")
	v.SetDefault("solver.random_seed", 0)
	v.SetDefault("solver.improve", true)
	v.SetDefault("solver.attempts", 1)
	v.SetDefault("solver.strategy", "best")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("calendar.time_zone", "UTC")
	v.SetDefault("calendar.weeks", 16)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("TIMETABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Solver.Attempts < 1 {
		return fmt.Errorf("配置校验失败: solver.attempts 不能小于 1")
	}
	if s := engine.Strategy(c.Solver.Strategy); s != engine.StrategyFirst && s != engine.StrategyBest {
		return fmt.Errorf("配置校验失败: solver.strategy 只能是 first 或 best")
	}
	if err := c.Solver.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		return fmt.Errorf("配置校验失败: calendar.time_zone 无效: %w", err)
	}
	if c.Calendar.WeekStart != "" {
		if _, err := time.Parse("2006-01-02", c.Calendar.WeekStart); err != nil {
			return fmt.Errorf("配置校验失败: calendar.week_start 必须为 YYYY-MM-DD")
		}
	}
	return nil
}
