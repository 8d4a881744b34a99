package transport

import (
	"context"
	"sort"
	"sync"

	coreerrors "framewire/internal/core/errors"
)

// Dialer 协议拨号函数
type Dialer func(ctx context.Context, address string) (Transport, error)

// ListenerFactory 协议监听函数
type ListenerFactory func(address string) (Listener, error)

// ProtocolInfo 协议信息
type ProtocolInfo struct {
	Name     string          // 协议名称: tcp, quic, kcp, websocket
	Priority int             // 优先级（数字越小优先级越高）
	Dialer   Dialer          // 拨号函数
	Listener ListenerFactory // 监听函数
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*ProtocolInfo)
)

// RegisterProtocol 注册协议
//
// 各协议实现文件在 init 里调用，用 build tags 裁剪协议时
// 对应的注册也一并消失。
func RegisterProtocol(name string, priority int, dialer Dialer, listener ListenerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = &ProtocolInfo{
		Name:     name,
		Priority: priority,
		Dialer:   dialer,
		Listener: listener,
	}
}

// GetProtocol 获取协议信息
func GetProtocol(name string) (*ProtocolInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[name]
	return info, ok
}

// GetRegisteredProtocols 获取所有已注册的协议（按优先级排序）
func GetRegisteredProtocols() []*ProtocolInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	protocols := make([]*ProtocolInfo, 0, len(registry))
	for _, info := range registry {
		protocols = append(protocols, info)
	}
	sort.Slice(protocols, func(i, j int) bool {
		return protocols[i].Priority < protocols[j].Priority
	})
	return protocols
}

// GetAvailableProtocolNames 获取所有可用协议名称（按优先级排序）
func GetAvailableProtocolNames() []string {
	protocols := GetRegisteredProtocols()
	names := make([]string, len(protocols))
	for i, p := range protocols {
		names[i] = p.Name
	}
	return names
}

// IsProtocolAvailable 检查协议是否可用
func IsProtocolAvailable(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Dial 使用指定协议建立连接
func Dial(ctx context.Context, protocol, address string) (Transport, error) {
	info, ok := GetProtocol(protocol)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeProtocolError,
			"protocol %q is not available (not compiled in)", protocol)
	}
	return info.Dialer(ctx, address)
}

// Listen 使用指定协议启动监听
func Listen(protocol, address string) (Listener, error) {
	info, ok := GetProtocol(protocol)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeProtocolError,
			"protocol %q is not available (not compiled in)", protocol)
	}
	if info.Listener == nil {
		return nil, coreerrors.Newf(coreerrors.CodeProtocolError,
			"protocol %q does not support listening", protocol)
	}
	return info.Listener(address)
}
