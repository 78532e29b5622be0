// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ds124wfegd/busbooker/internal/entity"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	App      AppConfig      `mapstructure:"app"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	AppVersion     string `json:"appVersion"`
	Host           string `json:"host" validate:"required"`
	Port           string `json:"port" validate:"required"`
	Timeout        time.Duration
	Idle_timeout   time.Duration
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Env            string        `json:"environment"`
	Mode           string        `mapstructure:"mode"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type BookingConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type CatalogConfig struct {
	Categories []CategoryConfig `mapstructure:"categories"`
}

type CategoryConfig struct {
	Name    string   `mapstructure:"name"`
	Keyword string   `mapstructure:"keyword"`
	Slots   []string `mapstructure:"slots"`
	Days    []string `mapstructure:"days"`
}

type WorkerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"` // cron schedule, e.g. "@every 30m"
}

type RedisConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required"`
	Password string `json:"password" validate:"required"`
	DB       int    `json:"db" validate:"required"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`

	QueuePrefix string `mapstructure:"queue_prefix"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type AuthConfig struct {
	AdminToken string `mapstructure:"admin_token"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()
	setDefaults(viperInstance)

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

// BuildCatalog turns the configured categories into the slot catalog.
// An empty section yields the default catalog.
func (c CatalogConfig) BuildCatalog() (*entity.Catalog, error) {
	if len(c.Categories) == 0 {
		return entity.DefaultCatalog(), nil
	}

	categories := make([]entity.SlotCategory, 0, len(c.Categories))
	for _, cc := range c.Categories {
		if strings.TrimSpace(cc.Name) == "" {
			return nil, fmt.Errorf("catalog category without name")
		}
		days := make([]time.Weekday, 0, len(cc.Days))
		for _, d := range cc.Days {
			wd, err := entity.ParseWeekday(d)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cc.Name, err)
			}
			days = append(days, wd)
		}
		categories = append(categories, entity.SlotCategory{
			Name:    cc.Name,
			Keyword: cc.Keyword,
			Slots:   cc.Slots,
			Days:    days,
		})
	}
	return entity.NewCatalog(categories), nil
}

// Location resolves the configured time zone, falling back to the process zone.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.appVersion", "1.0.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", GetEnv("PORT", "5001"))
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{})

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "busbooker")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "cbbs")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("app.timezone", "Local")
	v.SetDefault("booking.capacity", entity.DefaultCapacity)

	// Worker defaults
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.cleanup_schedule", "@every 30m")

	// Redis defaults, empty host disables the task queue
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.queue_prefix", "bus_booking")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("auth.admin_token", "")
}
