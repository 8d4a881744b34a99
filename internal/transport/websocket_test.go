//go:build !no_websocket

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeWebSocketURL 测试地址规范化
func TestNormalizeWebSocketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"https to wss", "https://relay.example.com/tunnel", "wss://relay.example.com/tunnel", false},
		{"http to ws", "http://relay.example.com/tunnel", "ws://relay.example.com/tunnel", false},
		{"ws passthrough", "ws://relay.example.com/tunnel", "ws://relay.example.com/tunnel", false},
		{"wss passthrough", "wss://relay.example.com:8443/t", "wss://relay.example.com:8443/t", false},
		{"scheme without path gets default", "https://relay.example.com", "wss://relay.example.com/_framewire", false},
		{"query survives", "ws://h:9000/p?token=abc", "ws://h:9000/p?token=abc", false},
		{"bare host port", "relay.example.com:9000", "ws://relay.example.com:9000/_framewire", false},
		{"host port with path", "relay.example.com:9000/custom", "ws://relay.example.com:9000/custom", false},
		{"garbage url", "http://bad url with spaces", "", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeWebSocketURL(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestWebSocket_Loopback 测试本机回环上的升级和收发
func TestWebSocket_Loopback(t *testing.T) {
	t.Parallel()

	ln, err := ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := acceptOne(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialed, err := DialWebSocket(ctx, ln.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dialed.Close() })

	accepted, ok := <-ch
	require.True(t, ok, "accept failed")
	t.Cleanup(func() { _ = accepted.Close() })

	assert.False(t, accepted.DataAvailable())

	// 两条二进制消息在读端摊平成字节流
	_, err = dialed.Write([]byte("first "))
	require.NoError(t, err)
	_, err = dialed.Write([]byte("second"))
	require.NoError(t, err)

	require.NoError(t, accepted.WaitReadable(ctx))

	got := make([]byte, 0, 12)
	buf := make([]byte, 32)
	for len(got) < 12 {
		n, err := accepted.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "first second", string(got))

	// 反方向
	_, err = accepted.Write([]byte("reply"))
	require.NoError(t, err)
	require.NoError(t, dialed.WaitReadable(ctx))
	n, err := dialed.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(buf[:n]))
}

// TestWebSocket_PeerClose 测试对端关闭后读端收尾
func TestWebSocket_PeerClose(t *testing.T) {
	t.Parallel()

	ln, err := ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := acceptOne(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialed, err := DialWebSocket(ctx, ln.Addr())
	require.NoError(t, err)

	accepted, ok := <-ch
	require.True(t, ok, "accept failed")
	t.Cleanup(func() { _ = accepted.Close() })

	require.NoError(t, dialed.Close())

	// 关闭帧到达后读端转入可读，Read 报错收场
	require.NoError(t, accepted.WaitReadable(ctx))
	_, err = accepted.Read(make([]byte, 8))
	assert.Error(t, err)
}

// TestWebSocket_ListenWithPath 测试自定义升级路径
func TestWebSocket_ListenWithPath(t *testing.T) {
	t.Parallel()

	ln, err := ListenWebSocket("127.0.0.1:0/custom-path")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := acceptOne(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialed, err := DialWebSocket(ctx, ln.Addr()+"/custom-path")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dialed.Close() })

	accepted, ok := <-ch
	require.True(t, ok, "accept failed")
	_ = accepted.Close()
}
