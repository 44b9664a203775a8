package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newHandler(cfg Config) slog.Handler {
	if cfg.Backend == BackendZap {
		return zapHandler(cfg)
	}
	opts := &slog.HandlerOptions{Level: cfg.level(), AddSource: cfg.AddSource}
	if cfg.Env == EnvDev {
		return slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.NewJSONHandler(cfg.Output, opts)
}

// zapHandler: JSON-ядро zap с семплированием, поверх него slog через slog-zap.
func zapHandler(cfg Config) slog.Handler {
	lvl := cfg.level()

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if cfg.AddSource {
		enc.EncodeCaller = zapcore.ShortCallerEncoder
	}

	var core zapcore.Core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(cfg.Output), zapLevel(lvl))

	// массовая рассылка QR даёт всплески одинаковых строк
	initial, thereafter := cfg.SampleInitial, cfg.SampleThereafter
	if initial <= 0 {
		initial = 100
	}
	if thereafter <= 0 {
		thereafter = 10
	}
	core = zapcore.NewSamplerWithOptions(core, time.Second, initial, thereafter)

	return slogzap.Option{
		Level:  lvl,
		Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
	}.NewZapHandler()
}

// шаг уровней slog — 4, zap — 1; debug/info/warn/error совпадают
func zapLevel(lvl slog.Level) zapcore.Level {
	l := zapcore.Level(lvl / 4)
	switch {
	case l < zapcore.DebugLevel:
		return zapcore.DebugLevel
	case l > zapcore.ErrorLevel:
		return zapcore.ErrorLevel
	}
	return l
}
