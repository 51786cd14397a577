package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/room4-2/livetranslate/session"
)

// Config holds all process configuration.
type Config struct {
	GeminiAPIKey      string
	GeminiScheme      string
	GeminiHost        string
	GeminiModel       string
	GeminiAPIVersion  string
	VADSilenceMs      int
	SystemInstruction string
	SetupTimeout      time.Duration

	Port           int
	AllowedOrigins []string
	MaxSessions    int
	SessionTimeout time.Duration
	MaxBufferSize  int // capture queue bytes per bridge

	RedisURL          string
	RedisPassword     string
	ResumptionProfile string

	LogLevel    string
	LogFormat   string
	WireLogFile string
}

// LoadConfig reads .env (if present), an optional config file at path,
// then environment variables, which win.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("gemini_scheme", session.DefaultScheme)
	v.SetDefault("gemini_host", "generativelanguage.googleapis.com")
	v.SetDefault("gemini_model", "gemini-2.5-flash-preview-native-audio-dialog")
	v.SetDefault("gemini_api_version", "v1alpha")
	v.SetDefault("vad_silence_ms", session.DefaultVADSilenceMs)
	v.SetDefault("system_instruction", "")
	v.SetDefault("system_instruction_file", "")
	v.SetDefault("setup_timeout", int(session.DefaultSetupTimeout/time.Second))
	v.SetDefault("port", 8080)
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("max_sessions", 100)
	v.SetDefault("session_timeout", 30)
	v.SetDefault("max_buffer_size", 1024*1024)
	v.SetDefault("redis_url", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("resumption_profile", "default")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("wire_log_file", "")
	v.SetDefault("gemini_api_key", "")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		GeminiAPIKey:      strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiScheme:      v.GetString("gemini_scheme"),
		GeminiHost:        v.GetString("gemini_host"),
		GeminiModel:       v.GetString("gemini_model"),
		GeminiAPIVersion:  v.GetString("gemini_api_version"),
		VADSilenceMs:      v.GetInt("vad_silence_ms"),
		SystemInstruction: v.GetString("system_instruction"),
		SetupTimeout:      time.Duration(v.GetInt("setup_timeout")) * time.Second,
		Port:              v.GetInt("port"),
		AllowedOrigins:    splitList(v.GetString("allowed_origins")),
		MaxSessions:       v.GetInt("max_sessions"),
		SessionTimeout:    time.Duration(v.GetInt("session_timeout")) * time.Minute,
		MaxBufferSize:     v.GetInt("max_buffer_size"),
		RedisURL:          v.GetString("redis_url"),
		RedisPassword:     v.GetString("redis_password"),
		ResumptionProfile: v.GetString("resumption_profile"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		WireLogFile:       v.GetString("wire_log_file"),
	}

	if file := v.GetString("system_instruction_file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read SYSTEM_INSTRUCTION_FILE: %w", err)
		}
		cfg.SystemInstruction = string(data)
	}
	if strings.TrimSpace(cfg.SystemInstruction) == "" {
		cfg.SystemInstruction = session.DefaultSystemInstruction
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if c.VADSilenceMs <= 0 {
		return fmt.Errorf("invalid VAD_SILENCE_MS: %d", c.VADSilenceMs)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("invalid MAX_SESSIONS: %d", c.MaxSessions)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("invalid MAX_BUFFER_SIZE: %d", c.MaxBufferSize)
	}
	return nil
}

// SessionConfig builds the per-connection settings. h is offered for
// resumption when usable.
func (c *Config) SessionConfig(h session.Handle) session.SessionConfig {
	return session.SessionConfig{
		Scheme:            c.GeminiScheme,
		Host:              c.GeminiHost,
		Model:             c.GeminiModel,
		APIVersion:        c.GeminiAPIVersion,
		APIKey:            c.GeminiAPIKey,
		VADSilenceMs:      c.VADSilenceMs,
		SystemInstruction: c.SystemInstruction,
		Resumption:        h,
	}
}

// ConnectRedis returns a client, or nil when redis is not configured or
// not reachable. Redis is optional everywhere it is used.
func (c *Config) ConnectRedis(ctx context.Context) *redis.Client {
	if c.RedisURL == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisURL,
		Password: c.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
