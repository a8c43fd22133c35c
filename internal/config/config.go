// Package config resolves ollachat settings from defaults, an optional .env
// file, OLLACHAT_* environment variables and CLI flags, in rising priority.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ollachat/internal/logger"
	"ollachat/internal/ollama"
)

// Configuration keys. Flag names match; environment variables are the
// upper-cased, underscored form with the OLLACHAT_ prefix
// (e.g. OLLACHAT_HISTORY_DIR).
const (
	KeyHost           = "host"
	KeyHistoryDir     = "history-dir"
	KeyModel          = "model"
	KeyTemperature    = "temperature"
	KeySystemPrompt   = "system-prompt"
	KeyOptimizeImages = "optimize-images"
	KeyLogLevel       = "log-level"
	KeyLogFile        = "log-file"
)

// DefaultHistoryDir anchors session files next to the working directory, the
// same location the store has always used.
const DefaultHistoryDir = ".ollama_chat_history"

// DefaultTemperature matches the midpoint of the [0, 2] control.
const DefaultTemperature = 0.7

// Config carries the resolved settings.
type Config struct {
	Host           string
	HistoryDir     string
	Model          string
	Temperature    float64
	SystemPrompt   string
	OptimizeImages bool
	LogLevel       string
	LogFile        string
}

// Load resolves the configuration on the given viper instance, which the
// entry point has already bound to the CLI flags. A .env file in the working
// directory is loaded best-effort before environment variables are read, so
// it participates at environment priority.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	v.SetDefault(KeyHost, ollama.DefaultHost)
	v.SetDefault(KeyHistoryDir, DefaultHistoryDir)
	v.SetDefault(KeyTemperature, DefaultTemperature)
	v.SetDefault(KeyOptimizeImages, true)

	v.SetEnvPrefix("OLLACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Host:           v.GetString(KeyHost),
		HistoryDir:     v.GetString(KeyHistoryDir),
		Model:          v.GetString(KeyModel),
		Temperature:    v.GetFloat64(KeyTemperature),
		SystemPrompt:   v.GetString(KeySystemPrompt),
		OptimizeImages: v.GetBool(KeyOptimizeImages),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFile:        v.GetString(KeyLogFile),
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature %.2f out of range [0, 2]", cfg.Temperature)
	}
	if cfg.HistoryDir == "" {
		return nil, fmt.Errorf("history directory cannot be empty")
	}

	return cfg, nil
}
