package dispose

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ResourceManager 资源管理器，负责统一管理所有可释放资源
//
// 服务端用它按注册顺序的反序做优雅停机：
// 先注册的（监听器）后释放，后注册的（会话中心）先释放。
type ResourceManager struct {
	resources map[string]Disposable
	mu        sync.RWMutex
	order     []string
	disposing bool
}

// NewResourceManager 创建新的资源管理器
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		resources: make(map[string]Disposable),
		order:     make([]string, 0),
	}
}

// Register 注册资源，按注册顺序的反序进行释放
func (rm *ResourceManager) Register(name string, resource Disposable) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; exists {
		return fmt.Errorf("resource %s already registered", name)
	}

	rm.resources[name] = resource
	rm.order = append(rm.order, name)
	Debugf("Registered resource: %s", name)
	return nil
}

// RegisterFunc 以清理函数的形式注册资源
func (rm *ResourceManager) RegisterFunc(name string, fn func() error) error {
	return rm.Register(name, disposeFunc(fn))
}

// disposeFunc 把清理函数适配成 Disposable
type disposeFunc func() error

func (f disposeFunc) Dispose() error {
	return f()
}

// Unregister 注销资源
func (rm *ResourceManager) Unregister(name string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; !exists {
		return fmt.Errorf("resource %s not found", name)
	}

	delete(rm.resources, name)
	for i, resourceName := range rm.order {
		if resourceName == name {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	Debugf("Unregistered resource: %s", name)
	return nil
}

// ResourceCount 获取资源数量
func (rm *ResourceManager) ResourceCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.resources)
}

// DisposeAll 释放所有资源，按注册的相反顺序
func (rm *ResourceManager) DisposeAll() *DisposeResult {
	rm.mu.Lock()

	if rm.disposing || len(rm.resources) == 0 {
		rm.mu.Unlock()
		return &DisposeResult{Errors: make([]*DisposeError, 0)}
	}
	rm.disposing = true

	resources := rm.resources
	order := make([]string, len(rm.order))
	copy(order, rm.order)

	rm.resources = make(map[string]Disposable)
	rm.order = make([]string, 0)
	rm.mu.Unlock()

	result := &DisposeResult{Errors: make([]*DisposeError, 0)}
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		resource := resources[name]
		if resource == nil {
			continue
		}
		if err := resource.Dispose(); err != nil {
			disposeErr := &DisposeError{
				HandlerIndex: len(order) - 1 - i,
				ResourceName: name,
				Err:          err,
			}
			result.Errors = append(result.Errors, disposeErr)
			Errorf("Failed to dispose resource %s: %v", name, err)
		} else {
			Debugf("Disposed resource: %s", name)
		}
	}

	rm.mu.Lock()
	rm.disposing = false
	rm.mu.Unlock()

	return result
}

// DisposeWithTimeout 带超时的资源释放
func (rm *ResourceManager) DisposeWithTimeout(timeout time.Duration) *DisposeResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultChan := make(chan *DisposeResult, 1)
	go func() {
		resultChan <- rm.DisposeAll()
	}()

	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		return &DisposeResult{
			Errors: []*DisposeError{
				{
					HandlerIndex: -1,
					ResourceName: "timeout",
					Err:          fmt.Errorf("dispose timeout after %v", timeout),
				},
			},
		}
	}
}
