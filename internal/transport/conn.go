package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
)

const (
	// peekPollInterval DataAvailable 探测允许阻塞的时长
	peekPollInterval = time.Millisecond

	// waitSliceInterval WaitReadable 每轮等待的时长，轮间检查 ctx
	waitSliceInterval = 100 * time.Millisecond
)

// ConnTransport 把 net.Conn 适配成 Transport
//
// 就绪探测用"短读超时 + Peek"实现，要求连接支持读超时。
// 读方向只允许单个协程使用，探测与读取共享内部缓冲。
type ConnTransport struct {
	conn net.Conn
	br   *bufio.Reader

	dispose.Dispose
}

// NewConnTransport 包装一条已建立的连接
func NewConnTransport(conn net.Conn, parentCtx context.Context) *ConnTransport {
	t := &ConnTransport{
		conn: conn,
		br:   bufio.NewReader(conn),
	}
	t.SetCtx(parentCtx, t.onClose)
	return t
}

func (t *ConnTransport) onClose() error {
	return t.conn.Close()
}

// Close 关闭传输和底层连接
func (t *ConnTransport) Close() error {
	return t.CloseWithError()
}

func (t *ConnTransport) Read(p []byte) (int, error) {
	// 清掉探测残留的读超时
	_ = t.conn.SetReadDeadline(time.Time{})
	return t.br.Read(p)
}

func (t *ConnTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

// DataAvailable 非阻塞探测是否可读
func (t *ConnTransport) DataAvailable() bool {
	if t.br.Buffered() > 0 {
		return true
	}

	_ = t.conn.SetReadDeadline(time.Now().Add(peekPollInterval))
	_, err := t.br.Peek(1)
	_ = t.conn.SetReadDeadline(time.Time{})

	if err == nil {
		return true
	}
	if isTimeout(err) {
		return false
	}
	// EOF 等关闭类错误也算就绪，让 Read 暴露关闭信号
	return true
}

// WaitReadable 阻塞等待可读，每 100ms 检查一次 ctx
func (t *ConnTransport) WaitReadable(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "wait readable cancelled")
		default:
		}

		if t.br.Buffered() > 0 {
			return nil
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(waitSliceInterval))
		_, err := t.br.Peek(1)
		_ = t.conn.SetReadDeadline(time.Time{})

		if err == nil {
			return nil
		}
		if isTimeout(err) {
			continue
		}
		return nil
	}
}

// LocalAddr 本端地址
func (t *ConnTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr 对端地址
func (t *ConnTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
