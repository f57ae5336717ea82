package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	maxFileSize = 5 << 20 // 5 MB
	maxValueLen = 200
	truncSuffix = "…"
	fileName    = "tabtree.log"
)

var (
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
)

// Init opens the log file for appending. Call once at startup.
// If the file exceeds 5 MB, it is rotated (renamed to .log.1) before opening.
// Safe to skip; all log calls become no-ops if not initialized.
func Init(dir string) error {
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxFileSize {
		os.Rename(path, path+".1")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	mu.Lock()
	file = f
	logger = zap.New(core)
	mu.Unlock()
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		logger.Sync()
		logger = nil
	}
	if file != nil {
		file.Close()
		file = nil
	}
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("restore.created", "loaded", 5, "total", 42)
func Info(event string, kv ...any) {
	write(zapcore.InfoLevel, event, nil, kv)
}

// Warn logs a degraded-but-recovered event.
func Warn(event string, kv ...any) {
	write(zapcore.WarnLevel, event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("ws.send", err, "action", "tabs.create")
func Error(event string, err error, kv ...any) {
	write(zapcore.ErrorLevel, event, err, kv)
}

func write(level zapcore.Level, event string, err error, kv []any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return
	}

	fields := make([]zap.Field, 0, len(kv)/2+1)
	if err != nil {
		fields = append(fields, zap.String("err", truncate(err.Error())))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.String(fmt.Sprint(kv[i]), truncate(fmt.Sprint(kv[i+1]))))
	}
	if ce := l.Check(level, event); ce != nil {
		ce.Write(fields...)
	}
}

func truncate(s string) string {
	if len(s) > maxValueLen {
		return s[:maxValueLen] + truncSuffix
	}
	return s
}
