package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format 日志格式
type Format string

const (
	FormatConsole Format = "CONSOLE"
	FormatJSON    Format = "JSON"
)

// 环境变量
const (
	EnvLevel  = "LOGGING_LEVEL"
	EnvFormat = "LOGGING_FORMAT"
)

// FileOptions 滚动日志文件配置（基于 lumberjack）
type FileOptions struct {
	// Path 文件路径，为空表示不写文件
	Path string
	// MaxSizeMB 单个文件最大尺寸
	MaxSizeMB int
	// MaxBackups 保留的旧文件数量
	MaxBackups int
	// MaxAgeDays 旧文件保留天数
	MaxAgeDays int
	// Compress 是否压缩旧文件
	Compress bool
}

// Options 日志配置
type Options struct {
	Level  string
	Format Format
	File   FileOptions
}

var (
	initOnce sync.Once
	mu       sync.RWMutex
	global   *zap.Logger
)

// ParseLevel 解析日志级别，无法识别时返回 Info
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func parseFormat(format Format) Format {
	switch Format(strings.ToUpper(string(format))) {
	case FormatJSON:
		return FormatJSON
	default:
		return FormatConsole
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// New 按配置创建日志器
// 控制台输出到 stdout，File.Path 非空时同时写入滚动文件（文件总是 JSON 格式）
func New(opts Options) *zap.Logger {
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var console zapcore.Encoder
	if parseFormat(opts.Format) == FormatJSON {
		console = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		consoleConfig := encoderConfig
		consoleConfig.EncodeTime = timeEncoder
		consoleConfig.ConsoleSeparator = " | "
		console = zapcore.NewConsoleEncoder(consoleConfig)
	}

	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.AddSync(os.Stdout), level)}
	if w := fileWriter(opts.File); w != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func fileWriter(opts FileOptions) io.Writer {
	if opts.Path == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// Initialize 使用环境变量初始化全局日志器（只执行一次）
// 已通过 SetLogger 设置过的日志器不会被覆盖
func Initialize() {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if global != nil {
			return
		}
		global = New(Options{
			Level:  getEnv(EnvLevel, "info"),
			Format: Format(getEnv(EnvFormat, string(FormatConsole))),
		})
	})
}

// SetLogger 替换全局日志器，nil 表示丢弃所有日志
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// GetLogger 返回全局日志器，未初始化时按环境变量初始化
func GetLogger() *zap.Logger {
	Initialize()
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// For 返回指定组件的命名日志器
func For(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// Sync 刷新缓冲的日志
func Sync() error {
	return GetLogger().Sync()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
