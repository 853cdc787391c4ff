package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogDir       = "./logs/"
	defaultLogFile      = "vault.log"
	defaultMaxSizeMB    = 100
	defaultMaxAgeDays   = 28
	defaultMaxBackupNum = 5
)

// LogConfig is the [log] section of the node config.
type LogConfig struct {
	File       string `ini:"file"`
	MaxSizeMB  int    `ini:"max_size_mb"`
	MaxAgeDays int    `ini:"max_age_days"`
	MaxBackups int    `ini:"max_backups"`
	// Stderr keeps console output alongside the rotated file.
	Stderr bool `ini:"stderr"`
}

var (
	mu     sync.RWMutex
	logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	closer io.Closer
)

// DefaultLogConfig reads LOGFILE, LOGFILE_MAX_SIZE_MB and LOGFILE_MAX_AGE_DAYS,
// falling back to defaults for anything unset or malformed.
func DefaultLogConfig() LogConfig {
	cfg := LogConfig{
		File:       defaultLogDir + defaultLogFile,
		MaxSizeMB:  defaultMaxSizeMB,
		MaxAgeDays: defaultMaxAgeDays,
		MaxBackups: defaultMaxBackupNum,
	}
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		cfg.File = defaultLogDir + logFile
	}
	if v, err := strconv.Atoi(os.Getenv("LOGFILE_MAX_SIZE_MB")); err == nil && v > 0 {
		cfg.MaxSizeMB = v
	}
	if v, err := strconv.Atoi(os.Getenv("LOGFILE_MAX_AGE_DAYS")); err == nil && v > 0 {
		cfg.MaxAgeDays = v
	}
	return cfg
}

// Init redirects output to a rotating file. Calling it again replaces the previous writer.
func Init(cfg LogConfig) {
	if cfg.File == "" {
		return
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,  // megabytes
		MaxAge:     cfg.MaxAgeDays, // days
		MaxBackups: cfg.MaxBackups,
	}

	var out io.Writer = lj
	if cfg.Stderr {
		out = io.MultiWriter(lj, os.Stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = lj
	logger = log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// SetOutput is used by tests and tools that want logs somewhere other than a file.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func output(color, level, category string, content []interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, level, category, ColorReset)

	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Printf("%s: %s", coloredCategory, message)
}

func Info(category string, content ...interface{}) {
	output(ColorGreen, "INFO", category, content)
}

func Error(category string, content ...interface{}) {
	output(ColorRed, "ERROR", category, content)
}

func Warn(category string, content ...interface{}) {
	output(ColorYellow, "WARN", category, content)
}

func Debug(category string, content ...interface{}) {
	output(ColorBlue, "DEBUG", category, content)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
