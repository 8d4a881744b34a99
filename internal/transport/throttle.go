package transport

import (
	"context"

	"golang.org/x/time/rate"

	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
)

const (
	// throttleChunkSize 限速读写的分块大小，单次等待不超过突发额度
	throttleChunkSize = 1024

	// minBurstSize 最小突发额度
	minBurstSize = 1024

	// burstRatio 突发额度与速率的比值
	burstRatio = 2
)

// ThrottledPipe 对一条传输的读写做字节级限速
//
// 读写各用一个令牌桶，互不影响。速率可以在运行中调整。
type ThrottledPipe struct {
	inner        Transport
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter

	dispose.Dispose
}

// calculateBurst 按速率推导突发额度
func calculateBurst(bytesPerSecond int64) int {
	burst := int(bytesPerSecond / burstRatio)
	if burst < minBurstSize {
		burst = minBurstSize
	}
	return burst
}

// NewThrottledPipe 包装一条传输并限速
//
// readBytesPerSecond/writeBytesPerSecond 为 0 表示该方向不限速，
// 负数视为非法参数。关闭时会关闭内层传输。
func NewThrottledPipe(inner Transport, readBytesPerSecond, writeBytesPerSecond int64, parentCtx context.Context) (*ThrottledPipe, error) {
	if inner == nil {
		return nil, coreerrors.ErrNilTransport
	}
	if readBytesPerSecond < 0 || writeBytesPerSecond < 0 {
		return nil, coreerrors.ErrInvalidRate
	}

	p := &ThrottledPipe{inner: inner}
	if readBytesPerSecond > 0 {
		p.readLimiter = rate.NewLimiter(rate.Limit(readBytesPerSecond), calculateBurst(readBytesPerSecond))
	}
	if writeBytesPerSecond > 0 {
		p.writeLimiter = rate.NewLimiter(rate.Limit(writeBytesPerSecond), calculateBurst(writeBytesPerSecond))
	}
	p.SetCtx(parentCtx, p.onClose)
	return p, nil
}

func (p *ThrottledPipe) onClose() error {
	return p.inner.Close()
}

// Close 关闭限速器和内层传输
func (p *ThrottledPipe) Close() error {
	return p.CloseWithError()
}

func (p *ThrottledPipe) Read(b []byte) (int, error) {
	if p.readLimiter == nil {
		return p.inner.Read(b)
	}

	// 分块读取，单次等待不超过突发额度
	chunk := len(b)
	if chunk > throttleChunkSize {
		chunk = throttleChunkSize
	}
	if err := p.readLimiter.WaitN(p.Ctx(), chunk); err != nil {
		return 0, coreerrors.NewRateLimitError(int64(p.readLimiter.Limit()), "rate limiter wait failed", err)
	}
	return p.inner.Read(b[:chunk])
}

func (p *ThrottledPipe) Write(b []byte) (int, error) {
	if p.writeLimiter == nil {
		return p.inner.Write(b)
	}

	written := 0
	for written < len(b) {
		chunk := len(b) - written
		if chunk > throttleChunkSize {
			chunk = throttleChunkSize
		}
		if err := p.writeLimiter.WaitN(p.Ctx(), chunk); err != nil {
			return written, coreerrors.NewRateLimitError(int64(p.writeLimiter.Limit()), "rate limiter wait failed", err)
		}
		n, err := p.inner.Write(b[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// DataAvailable 非阻塞探测内层是否可读
func (p *ThrottledPipe) DataAvailable() bool {
	return p.inner.DataAvailable()
}

// WaitReadable 阻塞等待内层可读
func (p *ThrottledPipe) WaitReadable(ctx context.Context) error {
	return p.inner.WaitReadable(ctx)
}

// SetReadRate 调整读方向速率，0 表示移除限制
func (p *ThrottledPipe) SetReadRate(bytesPerSecond int64) error {
	if bytesPerSecond < 0 {
		return coreerrors.ErrInvalidRate
	}
	if bytesPerSecond == 0 {
		p.readLimiter = nil
		return nil
	}
	if p.readLimiter == nil {
		p.readLimiter = rate.NewLimiter(rate.Limit(bytesPerSecond), calculateBurst(bytesPerSecond))
		return nil
	}
	p.readLimiter.SetLimit(rate.Limit(bytesPerSecond))
	p.readLimiter.SetBurst(calculateBurst(bytesPerSecond))
	return nil
}

// SetWriteRate 调整写方向速率，0 表示移除限制
func (p *ThrottledPipe) SetWriteRate(bytesPerSecond int64) error {
	if bytesPerSecond < 0 {
		return coreerrors.ErrInvalidRate
	}
	if bytesPerSecond == 0 {
		p.writeLimiter = nil
		return nil
	}
	if p.writeLimiter == nil {
		p.writeLimiter = rate.NewLimiter(rate.Limit(bytesPerSecond), calculateBurst(bytesPerSecond))
		return nil
	}
	p.writeLimiter.SetLimit(rate.Limit(bytesPerSecond))
	p.writeLimiter.SetBurst(calculateBurst(bytesPerSecond))
	return nil
}
