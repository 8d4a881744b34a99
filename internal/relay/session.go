package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
	"framewire/internal/relay/message"
	"framewire/internal/stream"
)

// Session 一个已接入客户端的服务端视图
//
// 读方向只有 serve 协程一个属主；写方向可能被转发、通告、
// 清扫等多个协程触碰，由 writeMu 串行化。
type Session struct {
	id        string
	remote    string
	stream    *stream.PacketStream
	createdAt time.Time

	// lastActive 最近一次收到任何帧的时间（unix 纳秒）
	lastActive atomic.Int64

	nameMu sync.RWMutex
	name   string

	writeMu sync.Mutex

	dispose.Dispose
}

// NewSession 包装一条数据包流为会话
func NewSession(id, remote string, ps *stream.PacketStream, parentCtx context.Context) *Session {
	s := &Session{
		id:        id,
		remote:    remote,
		stream:    ps,
		createdAt: time.Now(),
	}
	s.Touch()
	s.SetCtx(parentCtx, s.onClose)
	return s
}

// onClose 级联关闭数据包流
func (s *Session) onClose() error {
	return s.stream.CloseWithError()
}

// ID 返回会话 ID
func (s *Session) ID() string {
	return s.id
}

// Remote 返回对端地址
func (s *Session) Remote() string {
	return s.remote
}

// Name 返回客户端声明的名字，入场前为空
func (s *Session) Name() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

// SetName 记录客户端声明的名字
func (s *Session) SetName(name string) {
	s.nameMu.Lock()
	s.name = name
	s.nameMu.Unlock()
}

// CreatedAt 返回接入时间
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Touch 刷新活跃时间
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// IdleFor 返回距最近一帧的空闲时长
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// Meter 返回本会话的流量计数器
func (s *Session) Meter() *stream.TrafficMeter {
	return s.stream.Meter()
}

// Send 编码并发出一条报文
//
// 可从任意协程调用。会话已关闭时返回会话关闭错误而不是底层写错误，
// 转发方据此跳过而非中断。
func (s *Session) Send(m *message.Message) error {
	if s.IsClosed() {
		return coreerrors.ErrSessionEvicted
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.stream.Write(m.Encode())
}

// Recv 阻塞读取并解码下一条报文
//
// 只能由 serve 协程调用。任何成功到达的帧都会刷新活跃时间。
func (s *Session) Recv(ctx context.Context) (*message.Message, error) {
	p, err := s.stream.ReadWait(ctx)
	if err != nil {
		return nil, err
	}
	s.Touch()
	return message.Decode(p)
}
