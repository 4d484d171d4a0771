package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/bloom/backend/internal/integration/deepseek"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Persona PersonaConfig
	Storage StorageConfig
	Notice  NoticeConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	notice, err := loadNoticeConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Persona: PersonaConfig{File: strings.TrimSpace(os.Getenv("PERSONA_FILE"))},
		Storage: StorageConfig{CheckinDBPath: getEnvOrDefault("CHECKIN_DB_PATH", "bloom.db")},
		Notice:  notice,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

const (
	DefaultEndpoint = "https://api.deepseek.com/chat/completions"
	DefaultModel    = "deepseek-chat"
)

// placeholderKeys 是模板代码里遗留的占位 Key，视同未配置。
var placeholderKeys = []string{"YOUR_DEEPSEEK_API_KEY", "YOUR_API_KEY"}

// AIConfig 描述 DeepSeek 对话补全相关配置。
type AIConfig struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature *float64
	// Timeout 为 0 时不额外限制请求时长，沿用底层传输的默认行为。
	Timeout time.Duration
}

// CredentialConfigured 表示是否提供了可用的 API Key（非空且不是占位符）。
func (c AIConfig) CredentialConfigured() bool {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return false
	}
	upper := strings.ToUpper(key)
	for _, placeholder := range placeholderKeys {
		if strings.Contains(upper, placeholder) {
			return false
		}
	}
	return true
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel() (*deepseek.ChatModel, error) {
	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	return deepseek.NewChatModel(deepseek.Config{
		APIKey:      c.APIKey,
		Endpoint:    c.Endpoint,
		Model:       c.Model,
		Temperature: temperature,
		Timeout:     c.Timeout,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("DEEPSEEK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("DEEPSEEK_TIMEOUT", 0)
	if err != nil {
		return AIConfig{}, err
	}

	// 浏览器版沿用 VITE_ 前缀，两者都认。
	apiKey := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("VITE_DEEPSEEK_API_KEY"))
	}

	return AIConfig{
		APIKey:      apiKey,
		Endpoint:    getEnvOrDefault("DEEPSEEK_API_URL", DefaultEndpoint),
		Model:       getEnvOrDefault("DEEPSEEK_MODEL", DefaultModel),
		Temperature: temperature,
		Timeout:     timeout,
	}, nil
}

// PersonaConfig 描述人设目录来源，File 为空时使用内置人设。
type PersonaConfig struct {
	File string
}

// StorageConfig 描述打卡记录的持久化位置。
type StorageConfig struct {
	CheckinDBPath string
}

// NoticeConfig 控制提示消息的默认展示时长。
type NoticeConfig struct {
	TTL time.Duration
}

func loadNoticeConfig() (NoticeConfig, error) {
	ttl, err := parseDurationEnv("NOTICE_TTL", 2*time.Second)
	if err != nil {
		return NoticeConfig{}, err
	}
	if ttl <= 0 {
		return NoticeConfig{}, fmt.Errorf("invalid NOTICE_TTL value: must be positive")
	}
	return NoticeConfig{TTL: ttl}, nil
}

// LogConfig 描述日志级别与输出格式（json 或 console）。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
