// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 SEEKMIND_LLM_MODEL。
const EnvPrefix = "SEEKMIND"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	MinIO   MinIOConfig   `mapstructure:"minio"`
	Assets  AssetsConfig  `mapstructure:"assets"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port  string `mapstructure:"port"`
	Mode  string `mapstructure:"mode"`
	Title string `mapstructure:"title"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	// Provider 为 "ollama"（/api/chat，NDJSON）或 "openai"（/chat/completions，SSE）。
	Provider     string              `mapstructure:"provider"`
	BaseURL      string              `mapstructure:"base_url"`
	APIKey       string              `mapstructure:"api_key"`
	Model        string              `mapstructure:"model"`
	SystemPrompt string              `mapstructure:"system_prompt"`
	Generation   LLMGenerationConfig `mapstructure:"generation"`
	Thinking     LLMThinkingConfig   `mapstructure:"thinking"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMThinkingConfig 配置思考阶段的切分方式。
type LLMThinkingConfig struct {
	// RequireOpenMarker 为 true 时，不以 <think> 开头的回复整体视为答案。
	RequireOpenMarker bool `mapstructure:"require_open_marker"`
}

// SessionConfig 存储会话相关的配置。
type SessionConfig struct {
	// Backend 为 "memory" 或 "redis"。
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	CookieName    string        `mapstructure:"cookie_name"`
	TokenSecret   string        `mapstructure:"token_secret"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置，Brokers 为空时不发布回复事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，Endpoint 为空时从本地读取资源。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// AssetsConfig 存储页面静态资源的配置。
type AssetsConfig struct {
	Dir  string `mapstructure:"dir"`
	Logo string `mapstructure:"logo"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.title", "SeekMind")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://127.0.0.1:11434")
	v.SetDefault("llm.model", "deepseek-r1:1.5b")
	v.SetDefault("llm.system_prompt", "You are a helpful assistant.")
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.sweep_interval", "10m")
	v.SetDefault("session.cookie_name", "seekmind_session")
	v.SetDefault("kafka.topic", "seekmind-replies")
	v.SetDefault("assets.dir", "assets")
	v.SetDefault("assets.logo", "deep-seek.png")
}

// Load 从指定路径读取 YAML 配置，环境变量（含 .env 文件）可覆盖其中的值。
func Load(configPath string) (Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

// Validate 检查配置中的枚举值与必填项。
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("不支持的 llm.provider: %q", c.LLM.Provider)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("session.backend 为 redis 时必须配置 redis.addr")
		}
	default:
		return fmt.Errorf("不支持的 session.backend: %q", c.Session.Backend)
	}
	if c.Session.TokenSecret == "" {
		return fmt.Errorf("session.token_secret 不能为空")
	}
	return nil
}
