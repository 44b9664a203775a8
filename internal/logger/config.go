package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Env — среда запуска; влияет на backend и уровень по умолчанию.
type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// ParseEnv: неизвестное значение считаем dev.
func ParseEnv(raw string) Env {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(v, "prod"):
		return EnvProd
	case strings.HasPrefix(v, "stag"), strings.HasPrefix(v, "preprod"):
		return EnvStage
	}
	return EnvDev
}

func envFromOS() Env { return ParseEnv(os.Getenv("APP_ENV")) }

type Backend string

const (
	BackendStd Backend = "std" // text в dev
	BackendZap Backend = "zap" // JSON через slog-zap
)

type Config struct {
	// Метаданные сервиса
	Service    string
	Version    string
	InstanceID string

	// Управление выводом
	Level   slog.Level
	Env     Env
	Backend Backend // default: zap для stage/prod, std для dev
	Debug   bool
	Output  io.Writer // nil = os.Stdout

	// Zap sampling
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}

// ParseLevel понимает debug|info|warn|error, всё остальное = info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
