package dao

import (
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// zapWriter adapts zap to gorm's Printf writer.
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Infof(format, args...)
}

// newGormLogger logs every statement in debug mode and only slow queries and errors otherwise.
// newGormLogger 调试模式记录全部 SQL，其余模式只记录慢查询与错误
func newGormLogger(lg *zap.Logger, debug bool) gormlogger.Interface {
	if lg == nil {
		return gormlogger.Discard
	}
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(zapWriter{sugar: lg.WithOptions(zap.AddCallerSkip(3)).Sugar()}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
