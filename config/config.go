package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Media        MediaConfig        `mapstructure:"media"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Redis        RedisConfig        `mapstructure:"redis"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MediaConfig struct {
	Path string `mapstructure:"path"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	FieldName    string   `mapstructure:"field_name"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type SegmentationConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 单次请求超时
	Retries int           `mapstructure:"retries"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

const writeTimeoutMargin = 30 * time.Second

// 仅这三个环境变量可覆盖配置
var envBindings = map[string]string{
	"server.port":           "PORT",
	"media.path":            "MEDIA_PATH",
	"segmentation.base_url": "CV_SERVICE_URL",
}

// Load 从 YAML 文件加载配置，环境变量优先
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// New 使用默认配置路径加载配置
func New() *Config {
	return NewFromFile("config.yaml")
}

// NewFromFile 加载指定配置文件，失败时回退到默认值 + 环境变量
func NewFromFile(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		cfg, err = unmarshal(newViper())
		if err != nil {
			return getDefaultConfig()
		}
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.Port = ListenAddr(cfg.Server.Port)
	cfg.Server.WriteTimeout = WriteTimeoutFor(cfg.Server.WriteTimeout, cfg.Segmentation)
	return &cfg, nil
}

// WriteTimeoutFor 写超时至少覆盖全部分割重试再加上上传与响应的余量
//
// Otherwise a hanging segmentation service makes the server drop the
// connection before the 500 response with the stored filename is written.
func WriteTimeoutFor(writeTimeout time.Duration, seg SegmentationConfig) time.Duration {
	if writeTimeout <= 0 || seg.Timeout <= 0 {
		return writeTimeout
	}
	need := seg.Timeout*time.Duration(max(0, seg.Retries)+1) + writeTimeoutMargin
	return max(writeTimeout, need)
}

// ListenAddr 将纯端口号转换为监听地址，如 "3001" -> ":3001"
func ListenAddr(port string) string {
	if port == "" || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":3001")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 150*time.Second)

	v.SetDefault("media.path", "./media")

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.field_name", "rugImage")
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/webp"})

	v.SetDefault("segmentation.base_url", "http://localhost:8000")
	v.SetDefault("segmentation.timeout", 60*time.Second)
	v.SetDefault("segmentation.retries", 1)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":3001",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 150 * time.Second,
		},
		Media: MediaConfig{
			Path: "./media",
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			FieldName:    "rugImage",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		},
		Segmentation: SegmentationConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
			Retries: 1,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
	}
}
