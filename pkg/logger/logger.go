// Package logger adapts slog to the logger interfaces expected by third-party libraries.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Printf satisfies badger's Logger (Errorf/Warningf/Infof/Debugf) on top of slog.
type Printf struct {
	l *slog.Logger
}

// NewPrintf wraps l; a nil l uses slog.Default.
func NewPrintf(l *slog.Logger) *Printf {
	if l == nil {
		l = slog.Default()
	}
	return &Printf{l: l}
}

func (p *Printf) Errorf(format string, args ...any) { p.log(slog.LevelError, format, args...) }

func (p *Printf) Warningf(format string, args ...any) { p.log(slog.LevelWarn, format, args...) }

func (p *Printf) Infof(format string, args ...any) { p.log(slog.LevelInfo, format, args...) }

func (p *Printf) Debugf(format string, args ...any) { p.log(slog.LevelDebug, format, args...) }

func (p *Printf) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !p.l.Enabled(ctx, level) {
		return
	}
	p.l.Log(ctx, level, strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// KV satisfies robfig/cron's Logger, which passes alternating keys and values.
type KV struct {
	l *slog.Logger
}

// NewKV wraps l; a nil l uses slog.Default.
func NewKV(l *slog.Logger) *KV {
	if l == nil {
		l = slog.Default()
	}
	return &KV{l: l}
}

// Info is routed to debug: cron reports every wake-up here.
func (k *KV) Info(msg string, keysAndValues ...any) {
	k.l.Debug(msg, keysAndValues...)
}

func (k *KV) Error(err error, msg string, keysAndValues ...any) {
	k.l.Error(msg, append(keysAndValues, "err", err)...)
}
