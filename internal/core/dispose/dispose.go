// Package dispose 提供统一的资源生命周期管理
//
// 组件内嵌 Dispose 后获得：父 context 取消联动、幂等 Close、
// 注册制清理回调。流、传输、会话等均通过该机制级联释放。
package dispose

import (
	"context"
	"fmt"
	"sync"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors []*DisposeError
}

func (r *DisposeResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors", len(r.Errors))
}

// Disposable 统一的资源释放接口
type Disposable interface {
	Dispose() error
}

// Dispose 资源管理结构体
//
// 清理回调按注册顺序执行；Close 与父 context 取消都会触发，
// 且只会执行一次。
type Dispose struct {
	stateMu       sync.Mutex
	closed        bool
	ctx           context.Context
	cancel        context.CancelFunc
	handlersMu    sync.Mutex
	cleanHandlers []func() error
	errors        []*DisposeError
}

// Ctx 返回组件生命周期 context
func (c *Dispose) Ctx() context.Context {
	return c.ctx
}

// IsClosed 返回是否已释放
func (c *Dispose) IsClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

// Close 关闭并返回清理结果
func (c *Dispose) Close() *DisposeResult {
	c.stateMu.Lock()
	if c.closed {
		errs := c.errors
		c.stateMu.Unlock()
		return &DisposeResult{Errors: errs}
	}
	c.closed = true
	cancel := c.cancel
	c.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	return c.runCleanHandlers()
}

// CloseWithError 以 error 形式返回清理结果
func (c *Dispose) CloseWithError() error {
	result := c.Close()
	if result.HasErrors() {
		return result.Errors[0].Err
	}
	return nil
}

func (c *Dispose) runCleanHandlers() *DisposeResult {
	// 复制回调列表，避免与 AddCleanHandler 竞争
	c.handlersMu.Lock()
	handlers := make([]func() error, len(c.cleanHandlers))
	copy(handlers, c.cleanHandlers)
	c.handlersMu.Unlock()

	result := &DisposeResult{Errors: make([]*DisposeError, 0)}
	for i, handler := range handlers {
		if err := handler(); err != nil {
			disposeErr := &DisposeError{HandlerIndex: i, Err: err}
			result.Errors = append(result.Errors, disposeErr)

			c.stateMu.Lock()
			c.errors = append(c.errors, disposeErr)
			c.stateMu.Unlock()

			// 记录错误但不中断其余清理
			Errorf("Cleanup handler[%d] failed: %v", i, err)
		}
	}
	return result
}

// AddCleanHandler 添加清理处理器
func (c *Dispose) AddCleanHandler(f func() error) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.cleanHandlers = append(c.cleanHandlers, f)
}

// GetErrors 获取清理过程中累计的错误
func (c *Dispose) GetErrors() []*DisposeError {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.errors
}

// SetCtx 绑定父 context 并注册首个清理回调
//
// 父 context 取消时自动执行清理。重复调用无效。
func (c *Dispose) SetCtx(parent context.Context, onClose func() error) {
	c.stateMu.Lock()
	if c.ctx != nil {
		c.stateMu.Unlock()
		Warn("ctx already set")
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	if onClose != nil {
		c.handlersMu.Lock()
		c.cleanHandlers = append(c.cleanHandlers, onClose)
		c.handlersMu.Unlock()
	}
	c.ctx, c.cancel = context.WithCancel(parent)
	c.closed = false
	ctx := c.ctx
	c.stateMu.Unlock()

	go func() {
		<-ctx.Done()
		c.stateMu.Lock()
		if c.closed {
			c.stateMu.Unlock()
			return
		}
		c.closed = true
		c.stateMu.Unlock()

		if result := c.runCleanHandlers(); result.HasErrors() {
			Errorf("Context cancellation cleanup failed: %v", result.Error())
		}
	}()
}

// SetCtxWithNoOpOnClose 设置上下文并使用空操作的清理回调
func (c *Dispose) SetCtxWithNoOpOnClose(parent context.Context) {
	c.SetCtx(parent, func() error { return nil })
}

// NewDispose 创建并绑定父 context 的 Dispose
func NewDispose(parent context.Context, onClose func() error) *Dispose {
	d := &Dispose{}
	d.SetCtx(parent, onClose)
	return d
}

// NewDisposeWithNoOp 创建无清理回调的 Dispose
func NewDisposeWithNoOp(parent context.Context) *Dispose {
	d := &Dispose{}
	d.SetCtxWithNoOpOnClose(parent)
	return d
}
