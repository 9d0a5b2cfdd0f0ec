package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig конфигурация логгера
type LoggerConfig struct {
	// Уровень логирования: debug, info, warn, error, fatal
	LogLevel string

	// IP узла
	NodeIP string

	// IP пода (для Kubernetes)
	PodIP string

	// Имя сервиса
	ServiceName string

	// Человекочитаемый цветной вывод вместо JSON
	Development bool
}

// CustomZapLogger обертка над zap.Logger с общими полями сервиса
type CustomZapLogger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

var levelColors = map[zapcore.Level]*color.Color{
	zapcore.DebugLevel:  color.New(color.FgMagenta),
	zapcore.InfoLevel:   color.New(color.FgBlue),
	zapcore.WarnLevel:   color.New(color.FgYellow),
	zapcore.ErrorLevel:  color.New(color.FgRed),
	zapcore.DPanicLevel: color.New(color.FgRed, color.Bold),
	zapcore.PanicLevel:  color.New(color.FgRed, color.Bold),
	zapcore.FatalLevel:  color.New(color.FgRed, color.Bold),
}

// NewCustomZapLogger создает логгер по конфигурации.
// Некорректный уровень логирования заменяется на info.
func NewCustomZapLogger(cfg *LoggerConfig) *CustomZapLogger {
	if cfg == nil {
		cfg = &LoggerConfig{LogLevel: "info"}
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		level.SetLevel(lvl)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Development {
		encCfg.EncodeLevel = colorLevelEncoder
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(zapcore.Lock(os.Stderr)))

	var fields []zap.Field
	if cfg.ServiceName != "" {
		fields = append(fields, zap.String("service", cfg.ServiceName))
	}
	if cfg.NodeIP != "" {
		fields = append(fields, zap.String("nodeIP", cfg.NodeIP))
	}
	if cfg.PodIP != "" {
		fields = append(fields, zap.String("podIP", cfg.PodIP))
	}

	return &CustomZapLogger{
		zap:   z.With(fields...),
		level: level,
	}
}

// New оборачивает готовый zap.Logger (например, из zaptest/observer)
func New(z *zap.Logger) *CustomZapLogger {
	return &CustomZapLogger{
		zap:   z.WithOptions(zap.AddCallerSkip(1)),
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() *CustomZapLogger {
	return &CustomZapLogger{
		zap:   zap.NewNop(),
		level: zap.NewAtomicLevelAt(zapcore.FatalLevel),
	}
}

func colorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	c, ok := levelColors[l]
	if !ok {
		enc.AppendString(l.CapitalString())
		return
	}
	enc.AppendString(c.Sprint(l.CapitalString()))
}

func (l *CustomZapLogger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *CustomZapLogger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

func (l *CustomZapLogger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *CustomZapLogger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Fatal пишет сообщение и завершает процесс
func (l *CustomZapLogger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}

// With возвращает дочерний логгер с дополнительными полями
func (l *CustomZapLogger) With(fields ...zap.Field) *CustomZapLogger {
	return &CustomZapLogger{zap: l.zap.With(fields...), level: l.level}
}

// Named возвращает дочерний логгер с именем подсистемы
func (l *CustomZapLogger) Named(name string) *CustomZapLogger {
	return &CustomZapLogger{zap: l.zap.Named(name), level: l.level}
}

// SetLevel меняет уровень логирования на лету (используется при горячей перезагрузке)
func (l *CustomZapLogger) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.level.SetLevel(lvl)
	return nil
}

// Level возвращает текущий уровень логирования
func (l *CustomZapLogger) Level() zapcore.Level {
	return l.level.Level()
}

// Zap возвращает исходный zap.Logger
func (l *CustomZapLogger) Zap() *zap.Logger {
	return l.zap
}

// Sync сбрасывает буферы
func (l *CustomZapLogger) Sync() error {
	return l.zap.Sync()
}
