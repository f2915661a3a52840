package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env        string
	DB         DBConfig
	Server     ServerConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Generation GenerationConfig
	Worker     WorkerConfig
	Cache      CacheConfig
	JWT        JWTConfig
	Logger     LoggerConfig
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DBConfig selects between the pure Go driver ("oracle") and the OCI based one ("godror").
type DBConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	AutoMigrate bool
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

// LLMConfig configures the generative model backend.
type LLMConfig struct {
	Provider       string // googleai | ollama | openai
	APIKey         string
	ServerURL      string
	DefaultModel   string
	FallbackModels []string
	Temperature    float64
	Timeout        time.Duration
}

// GenerationConfig holds the pipeline thresholds.
type GenerationConfig struct {
	MaxDirectChars      int
	ChunkSize           int
	ChunkOverlap        int
	MaxBullets          int
	MaxAttemptsPerModel int
	BackoffBase         time.Duration
}

type WorkerConfig struct {
	Concurrency  int
	QueueSize    int
	LockTTL      time.Duration
	StaleAfter   time.Duration
	ReapInterval time.Duration
}

type CacheConfig struct {
	QuizTTL time.Duration
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL time.Duration
}

type LoggerConfig struct {
	Level string
	Env   string
}

var defaultFallbackModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-2.0-flash",
	"gemini-2.0-pro",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("db.driver", "oracle")
	v.SetDefault("db.port", 1521)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 120)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.body_limit", 25*1024*1024)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("llm.provider", "googleai")
	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.fallback_models", defaultFallbackModels)
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("generation.max_direct_chars", 20000)
	v.SetDefault("generation.chunk_size", 8000)
	v.SetDefault("generation.chunk_overlap", 500)
	v.SetDefault("generation.max_bullets", 80)
	v.SetDefault("generation.max_attempts_per_model", 2)
	v.SetDefault("generation.backoff_base", "700ms")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.lock_ttl", "10m")
	v.SetDefault("worker.stale_after", "15m")
	v.SetDefault("worker.reap_interval", "1m")
	v.SetDefault("cache.quiz_ttl", "10m")
	v.SetDefault("jwt.access_token_ttl", "1h")
	v.SetDefault("logger.level", "info")
}

// LoadConfig reads config.yaml (if present) and applies environment overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	cfg := &Config{
		Env: v.GetString("env"),
		DB: DBConfig{
			Driver:      v.GetString("db.driver"),
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			DBName:      v.GetString("db.name"),
			AutoMigrate: v.GetBool("db.auto_migrate"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  time.Duration(v.GetInt("server.read_timeout")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("server.write_timeout")) * time.Second,
			BodyLimit:    v.GetInt("server.body_limit"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		LLM: LLMConfig{
			Provider:       v.GetString("llm.provider"),
			APIKey:         v.GetString("llm.api_key"),
			ServerURL:      v.GetString("llm.server_url"),
			DefaultModel:   v.GetString("llm.default_model"),
			FallbackModels: v.GetStringSlice("llm.fallback_models"),
			Temperature:    v.GetFloat64("llm.temperature"),
			Timeout:        v.GetDuration("llm.timeout"),
		},
		Generation: GenerationConfig{
			MaxDirectChars:      v.GetInt("generation.max_direct_chars"),
			ChunkSize:           v.GetInt("generation.chunk_size"),
			ChunkOverlap:        v.GetInt("generation.chunk_overlap"),
			MaxBullets:          v.GetInt("generation.max_bullets"),
			MaxAttemptsPerModel: v.GetInt("generation.max_attempts_per_model"),
			BackoffBase:         v.GetDuration("generation.backoff_base"),
		},
		Worker: WorkerConfig{
			Concurrency:  v.GetInt("worker.concurrency"),
			QueueSize:    v.GetInt("worker.queue_size"),
			LockTTL:      v.GetDuration("worker.lock_ttl"),
			StaleAfter:   v.GetDuration("worker.stale_after"),
			ReapInterval: v.GetDuration("worker.reap_interval"),
		},
		Cache: CacheConfig{
			QuizTTL: v.GetDuration("cache.quiz_ttl"),
		},
		JWT: JWTConfig{
			SecretKey:      v.GetString("jwt.secret_key"),
			AccessTokenTTL: v.GetDuration("jwt.access_token_ttl"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("logger.level"),
			Env:   v.GetString("env"),
		},
	}

	// Legacy variable names used by existing deployments
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL_ID"); model != "" {
		cfg.LLM.DefaultModel = model
	}
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		cfg.JWT.SecretKey = secret
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		cfg.Redis.Address = redisAddress
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logger.Level = level
	}

	return cfg, nil
}

// GetDSN builds the connection string for the configured driver.
func (c *Config) GetDSN() string {
	if c.DB.Driver == "godror" {
		return fmt.Sprintf(`user="%s" password="%s" connectString="%s:%d/%s"`,
			c.DB.User,
			c.DB.Password,
			c.DB.Host,
			c.DB.Port,
			c.DB.DBName,
		)
	}
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
	)
}
