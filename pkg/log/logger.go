package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Debug mode variables
var (
	mu           sync.RWMutex
	debugMode    bool
	logger       = zap.NewNop()
	sessionID    string
	debugLogPath string
)

// InitDebugMode initializes debug mode, creating the session log file under
// baseDir/<date>/. An empty baseDir means ~/.rockets/debug.
func InitDebugMode(baseDir string) error {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".rockets", "debug")
	}

	// Create directory for today's date
	now := time.Now()
	dateDir := filepath.Join(baseDir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}

	// Generate unique session ID based on timestamp
	id := now.Format("150405-") + fmt.Sprintf("%03d", now.Nanosecond()/1000000)
	path := filepath.Join(dateDir, fmt.Sprintf("session_%s.log", id))

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create debug log file: %w", err)
	}

	mu.Lock()
	logger = l
	sessionID = id
	debugLogPath = path
	debugMode = true
	mu.Unlock()

	l.Debug("session started", zap.String("session", id), zap.Time("at", now))
	return nil
}

// SetLogger installs l as the package logger, e.g. a zaptest logger
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the package logger. It discards everything unless debug mode
// or SetLogger installed a real one.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// LogDebug writes a message to the debug log
func LogDebug(message string, fields ...zap.Field) {
	L().Debug(message, fields...)
}

// CloseDebugLog flushes and closes the debug log
func CloseDebugLog() {
	mu.Lock()
	l := logger
	active := debugMode
	id := sessionID
	logger = zap.NewNop()
	debugMode = false
	mu.Unlock()

	if active {
		l.Debug("session ended", zap.String("session", id))
		_ = l.Sync()
	}
}

// IsDebugMode returns whether debug mode is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugMode
}

// GetDebugLogPath returns the path to the current debug log file
func GetDebugLogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return debugLogPath
}
