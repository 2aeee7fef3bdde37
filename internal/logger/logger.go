// Package logger - структурированный журнал сервиса поверх go-kit/log.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Level - уровень журналирования.
type Level uint8

// Уровни журналирования.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format - формат вывода журнала.
type Format uint8

// Форматы вывода.
const (
	FormatJSON Format = iota
	FormatLogfmt
)

// ParseLevel разбирает уровень из строки (debug, info, warn, error).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("неизвестный уровень журналирования: %q", s)
	}
}

// ParseFormat разбирает формат из строки (json, logfmt).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "logfmt", "text":
		return FormatLogfmt, nil
	default:
		return FormatJSON, fmt.Errorf("неизвестный формат журнала: %q", s)
	}
}

// Logger пишет сообщения с уровнем, модулем и парами ключ-значение.
type Logger struct {
	logger log.Logger
	level  Level
	module string
}

// New создает журнал, пишущий в w.
func New(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	// log.DefaultCaller + 1 за обертку уровня в этом пакете.
	const callerDepth = 4

	var base log.Logger
	switch format {
	case FormatJSON:
		base = log.NewJSONLogger(log.NewSyncWriter(w))
	case FormatLogfmt:
		base = log.NewLogfmtLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("неподдерживаемый формат журнала: %d", format)
	}
	base = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(callerDepth))

	return &Logger{logger: base, level: lvl, module: module}, nil
}

// NewDefault создает JSON-журнал уровня info в stdout.
func NewDefault(module string) *Logger {
	l, err := New(module, os.Stdout, FormatJSON, LevelInfo)
	if err != nil {
		// New падает только на неизвестном формате.
		panic(err)
	}
	return l
}

// Nop возвращает журнал, который ничего не пишет. Используется в тестах.
func Nop() *Logger {
	return &Logger{logger: log.NewNopLogger(), level: LevelError, module: "nop"}
}

// Debug пишет сообщение уровня debug.
func (l *Logger) Debug(msg string, keyvals ...any) {
	if l.level > LevelDebug {
		return
	}
	_ = level.Debug(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Info пишет сообщение уровня info.
func (l *Logger) Info(msg string, keyvals ...any) {
	if l.level > LevelInfo {
		return
	}
	_ = level.Info(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Warn пишет сообщение уровня warn.
func (l *Logger) Warn(msg string, keyvals ...any) {
	if l.level > LevelWarn {
		return
	}
	_ = level.Warn(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Error пишет сообщение уровня error.
func (l *Logger) Error(msg string, keyvals ...any) {
	_ = level.Error(l.logger).Log(l.prefix(msg, keyvals)...)
}

// With возвращает копию журнала с дополнительным контекстом.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{logger: log.With(l.logger, keyvals...), level: l.level, module: l.module}
}

// Module возвращает копию журнала с другим именем модуля.
func (l *Logger) Module(module string) *Logger {
	return &Logger{logger: l.logger, level: l.level, module: module}
}

// Printf позволяет передавать журнал туда, где ожидается log.Printf-совместимый интерфейс.
func (l *Logger) Printf(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) prefix(msg string, keyvals []any) []any {
	return append([]any{"module", l.module, "msg", msg}, keyvals...)
}
