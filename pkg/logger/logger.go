package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
)

// LogLevel определяет уровень важности сообщения
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Цветовые коды для вывода в консоль
const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	purple = "\033[35m"
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Logger кастомная структура логирования
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
}

// New создает новый экземпляр Logger
func New(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		output: os.Stdout,
	}
}

// getCallerInfo возвращает файл и строку вызывающего кода
func getCallerInfo(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???", 0
	}

	// Оставляем только последние компоненты пути
	parts := strings.Split(file, "/")
	if len(parts) > 3 {
		file = strings.Join(parts[len(parts)-3:], "/")
	}

	return file, line
}

// colorForLevel возвращает цвет для уровня логирования
func colorForLevel(level LogLevel) string {
	switch level {
	case DEBUG:
		return blue
	case INFO:
		return green
	case WARN:
		return yellow
	case ERROR:
		return red
	case FATAL:
		return purple
	default:
		return reset
	}
}

// log записывает отформатированное сообщение
func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	// Пропускаем 3 кадра стека, чтобы получить реального вызывающего
	file, line := getCallerInfo(3)

	logEntry := fmt.Sprintf("%s[%s]%s %s:%d - %s\n",
		colorForLevel(level),
		levelNames[level],
		reset,
		file,
		line,
		msg,
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.output, logEntry)

	if level == FATAL {
		os.Exit(1)
	}
}

// formatKeysAndValues собирает пары ключ-значение в строку
func formatKeysAndValues(msg string, keysAndValues ...interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		var value interface{} = "(MISSING)"
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		b.WriteString(fmt.Sprintf(" %s=%v", key, value))
	}
	return b.String()
}

// Debug логирует отладочное сообщение
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, v...))
}

// Info логирует информационное сообщение
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, v...))
}

// Warn логирует предупреждение
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, v...))
}

// Error логирует сообщение об ошибке
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, v...))
}

// Fatal логирует фатальную ошибку и завершает процесс
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(FATAL, fmt.Sprintf(format, v...))
}

// Debugw логирует отладочное сообщение с парами ключ-значение
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.log(DEBUG, formatKeysAndValues(msg, keysAndValues...))
}

// Infow логирует информационное сообщение с парами ключ-значение
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.log(INFO, formatKeysAndValues(msg, keysAndValues...))
}

// Warnw логирует предупреждение с парами ключ-значение
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.log(WARN, formatKeysAndValues(msg, keysAndValues...))
}

// Errorw логирует сообщение об ошибке с парами ключ-значение
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.log(ERROR, formatKeysAndValues(msg, keysAndValues...))
}

// Fatalw логирует фатальную ошибку с парами ключ-значение и завершает процесс
func (l *Logger) Fatalw(msg string, keysAndValues ...interface{}) {
	l.log(FATAL, formatKeysAndValues(msg, keysAndValues...))
}
