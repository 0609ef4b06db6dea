package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultAutoresponseSentence is the exact, case-sensitive sentence
// spec.md §6 names as the known customer-service auto-reply.
const DefaultAutoresponseSentence = `Thank you for reaching out! Did you know that you can now dial *977# to report a power outage or get your last three tokens instantly?`

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	AI      AIConfig
	Pipeline PipelineConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AIConfig selects and authenticates the C5 LLM provider.
type AIConfig struct {
	Service      string // "gemini" or "openai"
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	GPTModel     string
}

// PipelineConfig is spec.md §6's tunable pipeline knobs.
type PipelineConfig struct {
	MaxTokensPerJob       int
	BatchSize             int
	AIConcurrency         int
	MinInterCallDelayMS   int
	MaxFileSize           int
	AutoresponseSentence  string
	AutoresponseSubstring bool // SPEC_FULL §6 addition: substring match instead of exact
	UploadTimeoutMinutes  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/powerpulse")

	viper.SetEnvPrefix("POWERPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("sqlite.path", "./data/powerpulse.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("ai.service", "gemini")
	viper.SetDefault("ai.geminiModel", "gemini-1.5-flash")
	viper.SetDefault("ai.gptModel", "gpt-4o-mini")
	viper.BindEnv("ai.geminiAPIKey", "GEMINI_API_KEY")
	viper.BindEnv("ai.openAIAPIKey", "OPENAI_API_KEY")
	viper.BindEnv("ai.geminiModel", "GEMINI_MODEL")
	viper.BindEnv("ai.gptModel", "GPT_MODEL")

	viper.SetDefault("pipeline.maxTokensPerJob", 16000)
	viper.SetDefault("pipeline.batchSize", 20)
	viper.SetDefault("pipeline.aiConcurrency", 2)
	viper.SetDefault("pipeline.minInterCallDelayMS", 1000)
	viper.SetDefault("pipeline.maxFileSize", 52428800)
	viper.SetDefault("pipeline.autoresponseSentence", DefaultAutoresponseSentence)
	viper.SetDefault("pipeline.autoresponseSubstring", false)
	viper.SetDefault("pipeline.uploadTimeoutMinutes", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
