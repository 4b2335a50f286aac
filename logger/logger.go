package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
	TRACE
)

var levelNames = map[LogLevel]string{
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
	TRACE: "TRACE",
}

// LevelToString returns the display name for a level.
func LevelToString(level LogLevel) string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return "INFO"
}

// Logger provides leveled structured logging to console and an optional
// log file. Context is passed as alternating key/value pairs.
type Logger struct {
	mu            sync.Mutex
	level         LogLevel
	logDir        string
	currentFile   *os.File
	consoleOutput bool
}

// New creates a new Logger. logDir may be empty to disable file output.
func New(level LogLevel, logDir string) *Logger {
	return &Logger{
		level:         level,
		logDir:        logDir,
		consoleOutput: true,
	}
}

// SetConsoleOutput enables or disables console output
func (l *Logger) SetConsoleOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consoleOutput = enabled
}

// SetLevel changes the current log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Error logs an error level message
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv...) }

// Warn logs a warning level message
func (l *Logger) Warn(msg string, kv ...interface{}) { l.log(WARN, msg, kv...) }

// Info logs an info level message
func (l *Logger) Info(msg string, kv ...interface{}) { l.log(INFO, msg, kv...) }

// Debug logs a debug level message
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv...) }

// Trace logs a trace level message
func (l *Logger) Trace(msg string, kv ...interface{}) { l.log(TRACE, msg, kv...) }

func (l *Logger) log(level LogLevel, msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	line := formatLine(time.Now(), level, msg, kv...)

	if l.consoleOutput {
		fmt.Print(line)
	}
	l.writeToFile(line)
}

func formatLine(ts time.Time, level LogLevel, msg string, kv ...interface{}) string {
	var ctx string
	if len(kv) > 0 {
		ctx = " |"
		for i := 0; i < len(kv); i += 2 {
			key := fmt.Sprintf("%v", kv[i])
			var val interface{} = "<missing>"
			if i+1 < len(kv) {
				val = kv[i+1]
			}
			ctx += fmt.Sprintf(" %s=%v", key, val)
		}
	}
	return fmt.Sprintf("[%s] [%s] %s%s\n",
		ts.Format("2006-01-02 15:04:05"), levelNames[level], msg, ctx)
}

func (l *Logger) writeToFile(line string) {
	if l.logDir == "" {
		return
	}

	if l.currentFile == nil {
		if err := os.MkdirAll(l.logDir, 0755); err != nil {
			return
		}
		logPath := filepath.Join(l.logDir, "server.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		l.currentFile = f
	}

	l.currentFile.WriteString(line)
}

// Close closes any open file handles
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentFile != nil {
		return l.currentFile.Close()
	}
	return nil
}

// ParseLevel converts a string to LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch s {
	case "ERROR", "error":
		return ERROR
	case "WARN", "warn":
		return WARN
	case "INFO", "info":
		return INFO
	case "DEBUG", "debug":
		return DEBUG
	case "TRACE", "trace":
		return TRACE
	default:
		return INFO
	}
}
