package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framewire/internal/config"
	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/relay"
	"framewire/internal/relay/message"
)

// testRelayConfig 返回回环随机端口的中继配置
func testRelayConfig(t *testing.T) *config.Root {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Protocols.TCP.Address = "127.0.0.1:0"
	cfg.Server.Status.Enabled = false
	cfg.Server.IdleTimeout = time.Minute
	cfg.Server.SweepInterval = 10 * time.Minute
	return cfg
}

// startRelay 后台启动中继服务器，返回其TCP地址
func startRelay(t *testing.T, cfg *config.Root) string {
	t.Helper()

	srv, err := relay.New(cfg, context.Background())
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.RunWithContext(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case runErr := <-done:
			assert.NoError(t, runErr)
		case <-time.After(5 * time.Second):
			t.Error("relay did not shut down in time")
		}
	})

	select {
	case <-srv.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not start in time")
	}
	return srv.ListenerAddrs()["tcp"]
}

// connectClient 创建客户端并完成入场，吃掉欢迎通告
func connectClient(t *testing.T, cfg *config.Root, addr, name string) *Client {
	t.Helper()

	ccfg := cfg.Client
	ccfg.Server = addr
	ccfg.Protocol = "tcp"
	ccfg.Name = name

	opts, err := cfg.Stream.BuildOptions()
	require.NoError(t, err)

	c := New(ccfg, opts, corelog.NewTestLogger(t), context.Background())
	t.Cleanup(func() { _ = c.CloseWithError() })
	require.NoError(t, c.Connect(context.Background()))

	m := recvWait(t, c)
	require.Equal(t, message.KindInfo, m.Kind)
	require.Contains(t, m.Body, "welcome "+name)
	return c
}

// recvWait 带超时读取下一条消息
func recvWait(t *testing.T, c *Client) *message.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := c.Recv(ctx)
	require.NoError(t, err)
	return m
}

// TestClient_ConnectAndExchange 测试入场、文本互发与在线名单
func TestClient_ConnectAndExchange(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	addr := startRelay(t, cfg)

	alice := connectClient(t, cfg, addr, "alice")
	assert.True(t, alice.IsConnected())
	assert.Equal(t, "alice", alice.Name())
	assert.Equal(t, addr, alice.ServerAddr())
	assert.Equal(t, "tcp", alice.Protocol())

	bob := connectClient(t, cfg, addr, "bob")

	m := recvWait(t, alice)
	require.Equal(t, message.KindInfo, m.Kind)
	assert.Contains(t, m.Body, "bob joined")

	require.NoError(t, bob.Send(message.Text("", "hi alice")))
	m = recvWait(t, alice)
	assert.Equal(t, message.KindText, m.Kind)
	assert.Equal(t, "bob", m.From)
	assert.Equal(t, "hi alice", m.Body)

	require.NoError(t, alice.Send(message.PeersQuery()))
	m = recvWait(t, alice)
	assert.Equal(t, message.KindPeers, m.Kind)
	assert.ElementsMatch(t, []string{"alice", "bob"}, m.Names)

	meter := alice.Meter()
	require.NotNil(t, meter)
	assert.GreaterOrEqual(t, meter.Snapshot().FramesOut, int64(2))
}

// TestClient_NotConnected 测试未连接时的操作报错
func TestClient_NotConnected(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	opts, err := cfg.Stream.BuildOptions()
	require.NoError(t, err)

	c := New(cfg.Client, opts, corelog.NewTestLogger(t), context.Background())
	t.Cleanup(func() { _ = c.CloseWithError() })

	assert.False(t, c.IsConnected())
	assert.Nil(t, c.Meter())

	err = c.Send(message.Ping())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConnectionError))

	_, err = c.Recv(context.Background())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConnectionError))
}

// TestClient_DialFailure 测试拨号失败与重复连接
func TestClient_DialFailure(t *testing.T) {
	t.Parallel()

	// 先占一个端口再关掉，保证没人监听
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testRelayConfig(t)
	opts, err := cfg.Stream.BuildOptions()
	require.NoError(t, err)

	ccfg := cfg.Client
	ccfg.Server = deadAddr
	ccfg.Protocol = "tcp"
	ccfg.Name = "nobody"

	c := New(ccfg, opts, corelog.NewTestLogger(t), context.Background())
	t.Cleanup(func() { _ = c.CloseWithError() })

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConnectionError))
	assert.False(t, c.IsConnected())
}

// TestClient_ConnectTwice 测试已连接时再次连接被拒
func TestClient_ConnectTwice(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	addr := startRelay(t, cfg)

	c := connectClient(t, cfg, addr, "solo")

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConnectionError))
}

// TestClient_ReadLoop 测试读循环投递消息并在断线时返回错误
func TestClient_ReadLoop(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	addr := startRelay(t, cfg)

	alice := connectClient(t, cfg, addr, "alice")
	bob := connectClient(t, cfg, addr, "bob")

	m := recvWait(t, alice)
	require.Contains(t, m.Body, "bob joined")

	delivered := make(chan *message.Message, 8)
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- alice.ReadLoop(context.Background(), func(m *message.Message) {
			delivered <- m
		})
	}()

	require.NoError(t, bob.Send(message.Text("", "over the loop")))
	select {
	case got := <-delivered:
		assert.Equal(t, message.KindText, got.Kind)
		assert.Equal(t, "bob", got.From)
		assert.Equal(t, "over the loop", got.Body)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	// 告别后服务器关闭连接，读循环以致命错误收场
	require.NoError(t, alice.Send(message.Goodbye("done")))
	select {
	case err := <-loopErr:
		require.Error(t, err)
		assert.True(t, coreerrors.IsFatalStream(err))
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop")
	}
}

// TestClient_ReadLoopCtxCancel 测试取消上下文让读循环安静退出
func TestClient_ReadLoopCtxCancel(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	addr := startRelay(t, cfg)

	c := connectClient(t, cfg, addr, "alice")

	loopCtx, cancel := context.WithCancel(context.Background())
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- c.ReadLoop(loopCtx, func(*message.Message) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-loopErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop")
	}
}

// TestClient_PingLoopKeepsAlive 测试心跳循环阻止会话过期
func TestClient_PingLoopKeepsAlive(t *testing.T) {
	t.Parallel()

	cfg := testRelayConfig(t)
	cfg.Server.IdleTimeout = 300 * time.Millisecond
	cfg.Server.SweepInterval = 50 * time.Millisecond
	cfg.Client.PingInterval = 100 * time.Millisecond
	addr := startRelay(t, cfg)

	c := connectClient(t, cfg, addr, "alice")

	pingCtx, stopPing := context.WithCancel(context.Background())
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.PingLoop(pingCtx)
	}()

	// 心跳撑过三个空闲周期后会话仍在
	time.Sleep(900 * time.Millisecond)
	require.NoError(t, c.Send(message.PeersQuery()))
	m := recvWait(t, c)
	require.Equal(t, message.KindPeers, m.Kind)

	// 停掉心跳等会话被清扫
	stopPing()
	select {
	case <-pingDone:
	case <-time.After(5 * time.Second):
		t.Fatal("ping loop did not stop")
	}

	m = recvWait(t, c)
	assert.Equal(t, message.KindGoodbye, m.Kind)
	assert.Equal(t, "idle timeout", m.Body)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Recv(ctx)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatalStream(err))
}
