// Package transport 字节传输抽象与各协议实现
//
// Transport 是帧流层消费的最小接口：字节读写加一个就绪探测。
// 协议实现（tcp/quic/kcp/websocket）通过注册表按名称拨号和监听，
// 可选协议可以用 build tags 裁剪。
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
)

// Transport 一条双向字节传输
//
// DataAvailable 的语义是"随后的 Read 不会阻塞"：有数据可读、
// 或流已经结束（此时 Read 立即返回关闭错误）都算就绪。探测
// 返回 false 只说明此刻没有数据，不代表连接仍然健康。
type Transport interface {
	io.ReadWriteCloser

	// DataAvailable 非阻塞探测是否可读
	DataAvailable() bool

	// WaitReadable 阻塞等待传输变为可读，或 ctx 取消
	//
	// 流结束同样视为可读，由随后的 Read 暴露关闭错误。
	WaitReadable(ctx context.Context) error
}

// Source 只读端，"一收一发"组合传输的读取半边
type Source interface {
	io.ReadCloser
	DataAvailable() bool
	WaitReadable(ctx context.Context) error
}

// Sink 只写端，"一收一发"组合传输的写入半边
type Sink interface {
	io.WriteCloser
}

// Listener 协议监听器
type Listener interface {
	// Accept 等待并返回下一条入站传输
	Accept(ctx context.Context) (Transport, error)

	// Addr 实际监听地址
	Addr() string

	Close() error
}

// Addressed 能提供网络地址的传输
type Addressed interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// RemoteAddrString 尽力取对端地址，用于日志
func RemoteAddrString(t Transport) string {
	if a, ok := t.(Addressed); ok {
		if addr := a.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return "unknown"
}

// isTimeout 判断读写或 Accept 错误是否为超时
//
// 部分实现（如 kcp-go）会包装错误，必须用 As 而不是类型断言。
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
