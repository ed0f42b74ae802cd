// Copyright (C) 2023 Patrice Congo <@congop>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides printf style logging helpers backed by a hclog.Logger
// carried in the context.
package log

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
)

type loggerKey struct{}

// New creates a logger writing to out. An unknown or blank level falls back to warn.
func New(name string, level string, out io.Writer) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: out,
	})
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger hclog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger carried by ctx, or a discarding logger.
func FromContext(ctx context.Context) hclog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(hclog.Logger); ok && logger != nil {
			return logger
		}
	}
	return hclog.NewNullLogger()
}

func Tracef(ctx context.Context, format string, args ...any) {
	if l := FromContext(ctx); l.IsTrace() {
		l.Trace(fmt.Sprintf(format, args...))
	}
}

func Debugf(ctx context.Context, format string, args ...any) {
	if l := FromContext(ctx); l.IsDebug() {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

func Infof(ctx context.Context, format string, args ...any) {
	if l := FromContext(ctx); l.IsInfo() {
		l.Info(fmt.Sprintf(format, args...))
	}
}

func Warnf(ctx context.Context, format string, args ...any) {
	if l := FromContext(ctx); l.IsWarn() {
		l.Warn(fmt.Sprintf(format, args...))
	}
}

func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Error(fmt.Sprintf(format, args...))
}
