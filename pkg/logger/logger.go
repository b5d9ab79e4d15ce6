package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
)

// LogLevel orders message severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// LogArea tags a message with the subsystem it came from so areas can be
// switched on and off independently at runtime.
type LogArea string

const (
	AreaBasic      LogArea = "basic"
	AreaTerminal   LogArea = "terminal"
	AreaFileSystem LogArea = "filesystem"
	AreaAuth       LogArea = "auth"
	AreaSession    LogArea = "session"
	AreaConfig     LogArea = "config"
	AreaGeneral    LogArea = "general"
)

var allAreas = []LogArea{
	AreaBasic, AreaTerminal, AreaFileSystem, AreaAuth,
	AreaSession, AreaConfig, AreaGeneral,
}

// Logger is the process-wide logging backend.
type Logger struct {
	enabled     int32 // atomic, checked on every call before any formatting
	level       int32 // atomic LogLevel
	areaEnabled map[LogArea]*int32
	file        *os.File
	mutex       sync.Mutex
	logPath     string
	maxSizeMB   int64
	currentSize int64
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize sets up the global logger from configuration. Safe to call more
// than once; only the first call does work.
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger()
	})
	return err
}

func newLogger() (*Logger, error) {
	l := &Logger{areaEnabled: make(map[LogArea]*int32)}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}
	l.loadConfig()
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) loadConfig() {
	enabled := configuration.GetBool("Debug", "enable_debug_logging", false)
	atomic.StoreInt32(&l.enabled, boolToInt32(enabled))

	levelStr := configuration.GetString("Debug", "log_level", "INFO")
	atomic.StoreInt32(&l.level, int32(parseLevel(levelStr)))

	l.logPath = configuration.GetString("Debug", "log_file", "retrobasic.log")
	l.maxSizeMB = int64(configuration.GetInt("Debug", "log_max_size_mb", 10))

	// Empty area list means everything is on.
	areaList := configuration.GetString("Debug", "log_areas", "")
	if strings.TrimSpace(areaList) == "" {
		for _, flag := range l.areaEnabled {
			atomic.StoreInt32(flag, 1)
		}
		return
	}
	wanted := make(map[string]bool)
	for _, name := range strings.Split(areaList, ",") {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for area, flag := range l.areaEnabled {
		atomic.StoreInt32(flag, boolToInt32(wanted[string(area)]))
	}
}

func parseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if info, err := file.Stat(); err == nil {
		l.currentSize = info.Size()
	}
	l.file = file
	return nil
}

// rotateIfNeeded renames the current file to .old once it crosses the size
// limit. One generation is kept.
func (l *Logger) rotateIfNeeded() {
	if l.maxSizeMB <= 0 || l.currentSize < l.maxSizeMB*1024*1024 {
		return
	}
	l.file.Close()
	os.Rename(l.logPath, l.logPath+".old")
	l.currentSize = 0
	_ = l.openLogFile()
}

func (l *Logger) log(level LogLevel, area LogArea, format string, args ...interface{}) {
	if atomic.LoadInt32(&l.enabled) == 0 && level < ERROR {
		return
	}
	if level < LogLevel(atomic.LoadInt32(&l.level)) {
		return
	}
	if flag, ok := l.areaEnabled[area]; ok && atomic.LoadInt32(flag) == 0 && level < ERROR {
		return
	}

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		logLevelNames[level], area, msg)

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.file != nil {
		n, _ := l.file.WriteString(line)
		l.currentSize += int64(n)
		l.rotateIfNeeded()
	}
	if level >= ERROR {
		fmt.Fprint(os.Stderr, line)
	}
}

// Debug logs a debug-level message for the given area.
func Debug(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(DEBUG, area, format, args...)
	}
}

// Info logs an info-level message for the given area.
func Info(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(INFO, area, format, args...)
	}
}

// Warn logs a warning for the given area.
func Warn(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(WARN, area, format, args...)
	}
}

// Error logs an error for the given area. Errors are always written.
func Error(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(ERROR, area, format, args...)
	}
}

// Fatal logs the message and exits the process.
func Fatal(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(FATAL, area, format, args...)
	}
	os.Exit(1)
}

// Shutdown flushes and closes the log file.
func Shutdown() {
	if globalLogger == nil {
		return
	}
	globalLogger.mutex.Lock()
	defer globalLogger.mutex.Unlock()
	if globalLogger.file != nil {
		globalLogger.file.Close()
		globalLogger.file = nil
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
