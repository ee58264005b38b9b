package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	INFO Level = iota
	DEBUG
)

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	if strings.EqualFold(strings.TrimSpace(s), "debug") {
		return DEBUG
	}
	return INFO
}

// Logger is a run-scoped logger. It is passed explicitly to the components
// of a run instead of living in package globals.
type Logger struct {
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	debugLog *log.Logger
	level    Level
	logFile  *os.File
}

// New creates a logger writing to stdout and, when filename is not empty,
// appending to that file as well.
func New(filename string, level Level) (*Logger, error) {
	if filename == "" {
		return NewWriter(os.Stdout, level), nil
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file '%s': %w", filename, err)
	}

	l := NewWriter(io.MultiWriter(os.Stdout, f), level)
	l.logFile = f
	return l, nil
}

// NewWriter creates a logger writing every level to w.
func NewWriter(w io.Writer, level Level) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLog:  log.New(w, "INFO: ", flags),
		warnLog:  log.New(w, "WARN: ", flags),
		errorLog: log.New(w, "ERROR: ", flags),
		debugLog: log.New(w, "DEBUG: ", flags),
		level:    level,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWriter(io.Discard, INFO)
}

func (l *Logger) Close() {
	if l != nil && l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.warnLog.Output(2, fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level < DEBUG {
		return
	}
	l.debugLog.Output(2, fmt.Sprintf(format, v...))
}
