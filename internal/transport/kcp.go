//go:build !no_kcp

// KCP 传输层实现。弱网环境下替代 TCP，
// 使用 -tags no_kcp 可以排除此协议以减小二进制体积。
package transport

import (
	"context"
	"time"

	"github.com/xtaci/kcp-go/v5"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
)

func init() {
	RegisterProtocol("kcp", 30, DialKCP, ListenKCP) // 优先级 30
}

// KCP 配置常量（两端保持一致）
const (
	kcpDataShards   = 0 // FEC 数据分片数（0 表示禁用 FEC）
	kcpParityShards = 0 // FEC 校验分片数

	kcpSndWnd = 1024 // 发送窗口大小
	kcpRcvWnd = 1024 // 接收窗口大小

	// NoDelay 模式参数
	// nodelay=1, interval=10ms, resend=2, nc=1 (最快模式)
	kcpNoDelay  = 1
	kcpInterval = 10
	kcpResend   = 2
	kcpNC       = 1

	kcpMTU        = 1400
	kcpBufferSize = 4 * 1024 * 1024 // 4MB
)

// configureKCP 配置 KCP 连接参数
func configureKCP(conn *kcp.UDPSession) {
	conn.SetNoDelay(kcpNoDelay, kcpInterval, kcpResend, kcpNC)
	conn.SetWindowSize(kcpSndWnd, kcpRcvWnd)
	conn.SetMtu(kcpMTU)
	conn.SetReadBuffer(kcpBufferSize)
	conn.SetWriteBuffer(kcpBufferSize)
	conn.SetACKNoDelay(true)
}

// DialKCP 建立 KCP 连接
func DialKCP(_ context.Context, address string) (Transport, error) {
	corelog.Debugf("Transport: dialing KCP to %s", address)

	// 无加密，无 FEC，加解密由帧流层承担
	conn, err := kcp.DialWithOptions(address, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to dial KCP")
	}
	configureKCP(conn)

	corelog.Infof("Transport: KCP connection established to %s", address)
	return NewConnTransport(conn, context.Background()), nil
}

// kcpListener KCP 监听器
type kcpListener struct {
	ln *kcp.Listener
}

// ListenKCP 启动 KCP 监听
func ListenKCP(address string) (Listener, error) {
	ln, err := kcp.ListenWithOptions(address, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to listen KCP")
	}

	if err := ln.SetReadBuffer(kcpBufferSize); err != nil {
		corelog.Warnf("Transport: failed to set KCP read buffer: %v", err)
	}
	if err := ln.SetWriteBuffer(kcpBufferSize); err != nil {
		corelog.Warnf("Transport: failed to set KCP write buffer: %v", err)
	}

	corelog.Infof("Transport: KCP listening on %s", ln.Addr())
	return &kcpListener{ln: ln}, nil
}

// Accept 等待下一条入站连接，通过短超时轮询履约 ctx 取消
func (l *kcpListener) Accept(ctx context.Context) (Transport, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "accept cancelled")
		default:
		}

		_ = l.ln.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := l.ln.AcceptKCP()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to accept KCP connection")
		}

		configureKCP(conn)
		corelog.Debugf("Transport: accepted KCP connection from %s", conn.RemoteAddr())
		return NewConnTransport(conn, context.Background()), nil
	}
}

func (l *kcpListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *kcpListener) Close() error {
	return l.ln.Close()
}
