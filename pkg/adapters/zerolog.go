// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package adapters

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger writes through github.com/rs/zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
	level  *atomic.Int32
}

// NewZerologLogger creates a zerolog-backed logger. Format "console" renders
// human-readable lines; anything else emits JSON.
func NewZerologLogger(out io.Writer, format string, level LogLevel) (Logger, error) {
	switch strings.ToLower(format) {
	case "", "json":
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return nil, fmt.Errorf("unknown log format %q for zerolog", format)
	}

	lv := new(atomic.Int32)
	lv.Store(int32(level))
	return &ZerologLogger{
		logger: zerolog.New(out).With().Timestamp().Logger(),
		level:  lv,
	}, nil
}

func (l *ZerologLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(DebugLevel, l.logger.Debug(), msg, fields)
}

func (l *ZerologLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(InfoLevel, l.logger.Info(), msg, fields)
}

func (l *ZerologLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(WarnLevel, l.logger.Warn(), msg, fields)
}

func (l *ZerologLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ErrorLevel, l.logger.Error(), msg, fields)
}

// WithFields returns a child logger carrying fields; the level is shared.
func (l *ZerologLogger) WithFields(fields ...Field) Logger {
	c := l.logger.With()
	for _, f := range fields {
		c = c.Interface(f.Key, f.Value)
	}
	return &ZerologLogger{logger: c.Logger(), level: l.level}
}

func (l *ZerologLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func (l *ZerologLogger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *ZerologLogger) emit(level LogLevel, ev *zerolog.Event, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}
