// Package safe 提供带 panic 恢复的 Goroutine 启动
//
// 会话处理和后台服务的 Goroutine 都从这里起，panic 只打日志
// 不拖垮进程，计数器暴露给状态接口。
package safe

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	corelog "framewire/internal/core/log"
)

type manager struct {
	activeCount atomic.Int64
	totalCount  atomic.Int64
	panicCount  atomic.Int64
}

var globalManager = &manager{}

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64 `json:"active"`      // 当前活跃数量
	Total      int64 `json:"total"`       // 累计创建数量
	PanicCount int64 `json:"panic_count"` // panic 次数
}

// GetStats 获取统计信息
func GetStats() Stats {
	return Stats{
		Active:     globalManager.activeCount.Load(),
		Total:      globalManager.totalCount.Load(),
		PanicCount: globalManager.panicCount.Load(),
	}
}

// Go 安全启动 Goroutine（带 panic 恢复）
// name 用于日志标识
func Go(name string, fn func()) {
	globalManager.totalCount.Add(1)
	globalManager.activeCount.Add(1)

	go func() {
		defer func() {
			globalManager.activeCount.Add(-1)
			if r := recover(); r != nil {
				globalManager.panicCount.Add(1)
				stack := string(debug.Stack())
				corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, stack)
			}
		}()
		fn()
	}()
}

// GoWithContext 带 context 的安全 Goroutine
// 当 context 取消时，fn 应该检查 ctx.Done() 并退出
func GoWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	globalManager.totalCount.Add(1)
	globalManager.activeCount.Add(1)

	go func() {
		defer func() {
			globalManager.activeCount.Add(-1)
			if r := recover(); r != nil {
				globalManager.panicCount.Add(1)
				stack := string(debug.Stack())
				corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, stack)
			}
		}()
		fn(ctx)
	}()
}
