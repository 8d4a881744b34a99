package log

import (
	"framewire/internal/core/dispose"
)

func init() {
	// 在包初始化时设置 dispose 的日志函数
	dispose.SetLogger(func(level string, format string, args ...interface{}) {
		switch level {
		case "debug":
			Debugf(format, args...)
		case "info":
			Infof(format, args...)
		case "warn":
			Warnf(format, args...)
		case "error":
			Errorf(format, args...)
		default:
			Infof(format, args...)
		}
	})
}
