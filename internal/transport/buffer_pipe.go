package transport

import (
	"context"
	"io"
	"net"
	"sync"

	coreerrors "framewire/internal/core/errors"
)

// bufferQueue 单向字节队列
//
// 写端追加，读端消费，关闭后读端先取尽残留数据再收到 EOF。
// 状态变化通过换代 channel 广播，等待方据此醒来重查。
type bufferQueue struct {
	mu      sync.Mutex
	data    []byte
	closed  bool
	changed chan struct{}
}

func newBufferQueue() *bufferQueue {
	return &bufferQueue{changed: make(chan struct{})}
}

// broadcastLocked 唤醒所有等待方，调用方持有 mu
func (q *bufferQueue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *bufferQueue) write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, io.ErrClosedPipe
	}
	q.data = append(q.data, p...)
	q.broadcastLocked()
	return len(p), nil
}

// read 阻塞读取，空队列时等待写入或关闭
func (q *bufferQueue) read(p []byte) (int, error) {
	q.mu.Lock()
	for len(q.data) == 0 {
		if q.closed {
			q.mu.Unlock()
			return 0, io.EOF
		}
		ch := q.changed
		q.mu.Unlock()
		<-ch
		q.mu.Lock()
	}

	n := copy(p, q.data)
	q.data = q.data[n:]
	q.mu.Unlock()
	return n, nil
}

func (q *bufferQueue) dataAvailable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data) > 0 || q.closed
}

func (q *bufferQueue) waitReadable(ctx context.Context) error {
	q.mu.Lock()
	for len(q.data) == 0 && !q.closed {
		ch := q.changed
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "wait readable cancelled")
		}
		q.mu.Lock()
	}
	q.mu.Unlock()
	return nil
}

func (q *bufferQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// BufferPipe 进程内存里的一条传输
//
// 成对创建，两端交叉共享队列，一端写入即另一端可读。
// 用于测试和进程内回环，没有底层连接。
type BufferPipe struct {
	in  *bufferQueue
	out *bufferQueue
}

// NewBufferPipePair 创建互联的两端
func NewBufferPipePair() (*BufferPipe, *BufferPipe) {
	ab := newBufferQueue()
	ba := newBufferQueue()
	a := &BufferPipe{in: ba, out: ab}
	b := &BufferPipe{in: ab, out: ba}
	return a, b
}

func (p *BufferPipe) Read(b []byte) (int, error) {
	return p.in.read(b)
}

func (p *BufferPipe) Write(b []byte) (int, error) {
	return p.out.write(b)
}

// Close 关闭两个方向
//
// 对端读完残留数据后收到 EOF，对端写入立即失败。
func (p *BufferPipe) Close() error {
	p.in.close()
	p.out.close()
	return nil
}

// DataAvailable 非阻塞探测是否可读
func (p *BufferPipe) DataAvailable() bool {
	return p.in.dataAvailable()
}

// WaitReadable 阻塞等待可读
func (p *BufferPipe) WaitReadable(ctx context.Context) error {
	return p.in.waitReadable(ctx)
}

// LocalAddr 本端地址
func (p *BufferPipe) LocalAddr() net.Addr {
	return pipeAddr{}
}

// RemoteAddr 对端地址
func (p *BufferPipe) RemoteAddr() net.Addr {
	return pipeAddr{}
}

// pipeAddr BufferPipe 的占位地址
type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
