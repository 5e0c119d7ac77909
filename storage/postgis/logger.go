// Copyright 2025 Poiesic Systems
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


package postgis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// gormLoggerAdapter adapts slog.Logger to gorm's logger interface.
// Statement traces go to debug; the repository reports failures itself.
type gormLoggerAdapter struct {
	logger *slog.Logger
	level  gormlogger.LogLevel
}

var _ gormlogger.Interface = (*gormLoggerAdapter)(nil)

func newGormLogger(logger *slog.Logger) *gormLoggerAdapter {
	return &gormLoggerAdapter{logger: logger, level: gormlogger.Warn}
}

func (gl *gormLoggerAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLoggerAdapter{logger: gl.logger, level: level}
}

func (gl *gormLoggerAdapter) Info(ctx context.Context, msg string, items ...interface{}) {
	if gl.level >= gormlogger.Info {
		gl.logger.InfoContext(ctx, fmt.Sprintf(msg, items...))
	}
}

func (gl *gormLoggerAdapter) Warn(ctx context.Context, msg string, items ...interface{}) {
	if gl.level >= gormlogger.Warn {
		gl.logger.WarnContext(ctx, fmt.Sprintf(msg, items...))
	}
}

func (gl *gormLoggerAdapter) Error(ctx context.Context, msg string, items ...interface{}) {
	if gl.level >= gormlogger.Error {
		gl.logger.ErrorContext(ctx, fmt.Sprintf(msg, items...))
	}
}

func (gl *gormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if gl.level == gormlogger.Silent || !gl.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	sql, rows := fc()
	gl.logger.DebugContext(ctx, "sql",
		"elapsed", time.Since(begin),
		"rows", rows,
		"sql", sql,
		"err", err)
}
