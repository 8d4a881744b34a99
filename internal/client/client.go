// Package client 实现接入中继服务器的客户端核心
//
// 客户端负责拨号、入场、收发消息和心跳维持。连接断开不做
// 自动重连，致命错误向调用方透出，由应用层决定退出或重建。
package client

import (
	"context"
	"sync"
	"time"

	"framewire/internal/config"
	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/relay/message"
	"framewire/internal/stream"
	"framewire/internal/transport"
)

// Client 中继客户端
//
// 写方向由 writeMu 串行化，控制台和心跳可以并发发送。
// 读方向只允许一个消费者，通常是 ReadLoop。
type Client struct {
	cfg    config.Client
	opts   *stream.Options
	logger corelog.Logger

	mu     sync.RWMutex
	stream *stream.PacketStream

	writeMu sync.Mutex

	dispose.Dispose
}

// New 创建客户端，Connect 之前不持有任何连接
func New(cfg config.Client, opts *stream.Options, logger corelog.Logger, parentCtx context.Context) *Client {
	if logger == nil {
		logger = corelog.Default()
	}
	c := &Client{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
	c.SetCtx(parentCtx, c.onClose)
	return c
}

func (c *Client) onClose() error {
	c.mu.Lock()
	ps := c.stream
	c.stream = nil
	c.mu.Unlock()

	if ps != nil {
		return ps.CloseWithError()
	}
	return nil
}

// Connect 拨号并发送入场报文
//
// 欢迎通告不在这里消费，由读方向的第一次 Recv 取到。
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return coreerrors.New(coreerrors.CodeConnectionError, "already connected")
	}

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	tr, err := transport.Dial(dialCtx, c.cfg.Protocol, c.cfg.Server)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConnectionError,
			"dial %s://%s failed", c.cfg.Protocol, c.cfg.Server)
	}

	ps, err := stream.NewPacketStream(tr, c.opts, c.Ctx())
	if err != nil {
		_ = tr.Close()
		return err
	}

	c.mu.Lock()
	c.stream = ps
	c.mu.Unlock()

	if err := c.Send(message.Hello(c.cfg.Name)); err != nil {
		_ = ps.CloseWithError()
		c.mu.Lock()
		c.stream = nil
		c.mu.Unlock()
		return err
	}

	c.logger.Infof("Client: connected to %s://%s as %q", c.cfg.Protocol, c.cfg.Server, c.cfg.Name)
	return nil
}

// Send 发送一条消息，未连接时报连接错误
func (c *Client) Send(m *message.Message) error {
	c.mu.RLock()
	ps := c.stream
	c.mu.RUnlock()

	if ps == nil {
		return coreerrors.New(coreerrors.CodeConnectionError, "not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ps.Write(m.Encode())
}

// Recv 阻塞读取下一条消息
func (c *Client) Recv(ctx context.Context) (*message.Message, error) {
	c.mu.RLock()
	ps := c.stream
	c.mu.RUnlock()

	if ps == nil {
		return nil, coreerrors.New(coreerrors.CodeConnectionError, "not connected")
	}

	pkt, err := ps.ReadWait(ctx)
	if err != nil {
		return nil, err
	}
	return message.Decode(pkt)
}

// ReadLoop 持续读取消息并交给 handler 处理
//
// 坏包只告警不中断。流出错时返回该错误；ctx 取消或客户端
// 主动关闭导致的退出返回 nil。
func (c *Client) ReadLoop(ctx context.Context, handler func(*message.Message)) error {
	for {
		m, err := c.Recv(ctx)
		if err != nil {
			if coreerrors.IsCode(err, coreerrors.CodeInvalidPacket) {
				c.logger.Warnf("Client: dropping undecodable message: %v", err)
				continue
			}
			if ctx.Err() != nil || c.IsClosed() {
				return nil
			}
			return err
		}
		handler(m)
	}
}

// PingLoop 按配置间隔发送心跳，直到 ctx 取消或发送失败
func (c *Client) PingLoop(ctx context.Context) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(message.Ping()); err != nil {
				if !c.IsClosed() {
					c.logger.Errorf("Client: failed to send ping: %v", err)
				}
				return
			}
		}
	}
}

// IsConnected 报告当前是否持有存活的流
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream != nil && !c.stream.IsClosed()
}

// Meter 返回当前流的流量计，未连接时为 nil
func (c *Client) Meter() *stream.TrafficMeter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stream == nil {
		return nil
	}
	return c.stream.Meter()
}

// Name 返回入场时使用的显示名
func (c *Client) Name() string { return c.cfg.Name }

// ServerAddr 返回服务器地址
func (c *Client) ServerAddr() string { return c.cfg.Server }

// Protocol 返回所用传输协议名
func (c *Client) Protocol() string { return c.cfg.Protocol }
