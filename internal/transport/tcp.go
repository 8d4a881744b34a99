// TCP 传输层实现。基础协议，始终编译。
package transport

import (
	"context"
	"net"
	"time"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
)

func init() {
	RegisterProtocol("tcp", 10, DialTCP, ListenTCP) // 优先级 10（最高）
}

const (
	// tcpDialTimeout 拨号超时
	tcpDialTimeout = 10 * time.Second

	// tcpKeepAlivePeriod 连接保活间隔
	tcpKeepAlivePeriod = 30 * time.Second

	// acceptPollInterval Accept 每轮等待的时长，轮间检查 ctx
	acceptPollInterval = time.Second
)

// DialTCP 建立 TCP 连接
func DialTCP(ctx context.Context, address string) (Transport, error) {
	dialer := &net.Dialer{
		Timeout: tcpDialTimeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to dial TCP")
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(tcpKeepAlivePeriod)
	}

	// 连接生命周期由调用方管理，拨号 ctx 只约束拨号过程
	return NewConnTransport(conn, context.Background()), nil
}

// tcpListener TCP 监听器
type tcpListener struct {
	ln *net.TCPListener
}

// ListenTCP 启动 TCP 监听
func ListenTCP(address string) (Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "invalid TCP listen address")
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to listen TCP")
	}

	corelog.Infof("Transport: TCP listening on %s", ln.Addr())
	return &tcpListener{ln: ln}, nil
}

// Accept 等待下一条入站连接，通过短超时轮询履约 ctx 取消
func (l *tcpListener) Accept(ctx context.Context) (Transport, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "accept cancelled")
		default:
		}

		_ = l.ln.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := l.ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to accept TCP connection")
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(tcpKeepAlivePeriod)
		}
		return NewConnTransport(conn, context.Background()), nil
	}
}

func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}
