//go:build !no_quic

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQUIC_Loopback 测试本机回环上的握手和收发
func TestQUIC_Loopback(t *testing.T) {
	t.Parallel()

	ln, err := ListenQUIC("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := acceptOne(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dialed, err := DialQUIC(ctx, ln.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dialed.Close() })

	// 监听侧要等第一个流上有数据才完成 Accept
	_, err = dialed.Write([]byte("quic hello"))
	require.NoError(t, err)

	accepted, ok := <-ch
	require.True(t, ok, "accept failed")
	t.Cleanup(func() { _ = accepted.Close() })

	require.NoError(t, accepted.WaitReadable(ctx))

	buf := make([]byte, 64)
	n, err := accepted.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "quic hello", string(buf[:n]))

	// 反方向
	_, err = accepted.Write([]byte("quic echo"))
	require.NoError(t, err)
	require.NoError(t, dialed.WaitReadable(ctx))
	n, err = dialed.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "quic echo", string(buf[:n]))
}

// TestQUIC_DialFailure 测试拨号失败报错而不是挂死
func TestQUIC_DialFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := DialQUIC(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
