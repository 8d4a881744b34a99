package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framewire/internal/config"
	coreerrors "framewire/internal/core/errors"
	"framewire/internal/relay/message"
	"framewire/internal/stream"
	"framewire/internal/transport"
)

// testServerConfig 返回指向回环随机端口的服务器配置
func testServerConfig(t *testing.T) *config.Root {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Protocols.TCP.Address = "127.0.0.1:0"
	cfg.Server.Status.Enabled = false
	cfg.Server.MaxSessions = 8
	cfg.Server.IdleTimeout = time.Minute
	cfg.Server.SweepInterval = 10 * time.Minute
	return cfg
}

// startServer 后台运行服务器并等待监听就绪，返回 TCP 地址
func startServer(t *testing.T, cfg *config.Root) (*Server, string) {
	t.Helper()

	srv, err := New(cfg, context.Background())
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
			t.Error("server did not shut down in time")
		}
	})

	select {
	case <-srv.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start in time")
	}

	addrs := srv.ListenerAddrs()
	require.Contains(t, addrs, "tcp")
	return srv, addrs["tcp"]
}

// dialRaw 建立一条 TCP 客户端流，不发入场报文
func dialRaw(t *testing.T, cfg *config.Root, addr string) *stream.PacketStream {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := transport.Dial(ctx, "tcp", addr)
	require.NoError(t, err)

	opts, err := cfg.Stream.BuildOptions()
	require.NoError(t, err)
	ps, err := stream.NewPacketStream(tr, opts, context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.CloseWithError() })
	return ps
}

// dialClient 建立客户端流并完成入场，吃掉欢迎通告
func dialClient(t *testing.T, cfg *config.Root, addr, name string) *stream.PacketStream {
	t.Helper()

	ps := dialRaw(t, cfg, addr)
	require.NoError(t, ps.Write(message.Hello(name).Encode()))

	m := recvMessage(t, ps)
	require.Equal(t, message.KindInfo, m.Kind)
	require.Contains(t, m.Body, "welcome "+name)
	return ps
}

// TestServer_RelayFlow 测试两个客户端经服务器互通的完整流程
func TestServer_RelayFlow(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	_, addr := startServer(t, cfg)

	alice := dialClient(t, cfg, addr, "alice")
	bob := dialClient(t, cfg, addr, "bob")

	// alice 收到 bob 的加入通告
	m := recvMessage(t, alice)
	assert.Equal(t, message.KindInfo, m.Kind)
	assert.Contains(t, m.Body, "bob joined")

	// 文本消息转发给对方，发送方名字由服务端填写
	require.NoError(t, alice.Write(message.Text("", "hello everyone").Encode()))
	m = recvMessage(t, bob)
	assert.Equal(t, message.KindText, m.Kind)
	assert.Equal(t, "alice", m.From)
	assert.Equal(t, "hello everyone", m.Body)

	// 发送方自己不会收到转发
	time.Sleep(100 * time.Millisecond)
	got, err := alice.Read()
	require.NoError(t, err)
	assert.Nil(t, got)

	// 在线名单
	require.NoError(t, bob.Write(message.PeersQuery().Encode()))
	m = recvMessage(t, bob)
	assert.Equal(t, message.KindPeers, m.Kind)
	assert.ElementsMatch(t, []string{"alice", "bob"}, m.Names)

	// 告别后连接被服务端关闭，另一方收到离开通告
	require.NoError(t, bob.Write(message.Goodbye("done").Encode()))
	m = recvMessage(t, alice)
	assert.Equal(t, message.KindInfo, m.Kind)
	assert.Contains(t, m.Body, "bob left")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = bob.ReadWait(ctx)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatalStream(err))
}

// TestServer_EchoMode 测试回声模式原样弹回
func TestServer_EchoMode(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	cfg.Server.Mode = config.ModeEcho
	_, addr := startServer(t, cfg)

	solo := dialClient(t, cfg, addr, "solo")
	require.NoError(t, solo.Write(message.Text("", "echo this").Encode()))

	m := recvMessage(t, solo)
	assert.Equal(t, message.KindText, m.Kind)
	assert.Equal(t, "solo", m.From)
	assert.Equal(t, "echo this", m.Body)
}

// TestServer_HelloRequired 测试首帧不是入场报文被拒
func TestServer_HelloRequired(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	_, addr := startServer(t, cfg)

	ps := dialRaw(t, cfg, addr)
	require.NoError(t, ps.Write(message.Text("", "no hello").Encode()))

	m := recvMessage(t, ps)
	assert.Equal(t, message.KindGoodbye, m.Kind)
	assert.Equal(t, "hello expected", m.Body)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ps.ReadWait(ctx)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatalStream(err))
}

// TestServer_SessionCap 测试超出容量挤出最久未活跃会话
func TestServer_SessionCap(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	cfg.Server.MaxSessions = 2
	srv, addr := startServer(t, cfg)

	first := dialClient(t, cfg, addr, "alice")
	_ = dialClient(t, cfg, addr, "bob")

	m := recvMessage(t, first)
	require.Equal(t, message.KindInfo, m.Kind)
	require.Contains(t, m.Body, "bob joined")

	// 第三个会话挤出最老的 alice
	_ = dialClient(t, cfg, addr, "carol")

	m = recvMessage(t, first)
	assert.Equal(t, message.KindGoodbye, m.Kind)
	assert.Equal(t, "session evicted", m.Body)
	assert.Equal(t, 2, srv.Registry().Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := first.ReadWait(ctx)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatalStream(err))
}

// TestServer_IdleSweep 测试心跳维持与空闲过期
func TestServer_IdleSweep(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	cfg.Server.IdleTimeout = 300 * time.Millisecond
	cfg.Server.SweepInterval = 50 * time.Millisecond
	_, addr := startServer(t, cfg)

	ps := dialClient(t, cfg, addr, "alice")

	// 心跳维持三个空闲周期
	deadline := time.Now().Add(900 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, ps.Write(message.Ping().Encode()))
		time.Sleep(100 * time.Millisecond)
	}

	// 会话仍然存活
	require.NoError(t, ps.Write(message.PeersQuery().Encode()))
	m := recvMessage(t, ps)
	require.Equal(t, message.KindPeers, m.Kind)

	// 停止心跳后被清扫
	m = recvMessage(t, ps)
	assert.Equal(t, message.KindGoodbye, m.Kind)
	assert.Equal(t, "idle timeout", m.Body)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ps.ReadWait(ctx)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatalStream(err))
}

// TestServer_NoListeners 测试没有任何监听器时启动失败
func TestServer_NoListeners(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	cfg.Server.Protocols.TCP.Enabled = false

	srv, err := New(cfg, context.Background())
	require.NoError(t, err)
	defer func() { _ = srv.CloseWithError() }()

	err = srv.RunWithContext(context.Background())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

// TestServer_StatusEndpoint 测试状态查询接口
func TestServer_StatusEndpoint(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig(t)
	cfg.Server.Status.Enabled = true
	cfg.Server.Status.Listen = "127.0.0.1:0"
	srv, addr := startServer(t, cfg)

	_ = dialClient(t, cfg, addr, "alice")

	statusAddr := srv.StatusAddr()
	require.NotEmpty(t, statusAddr)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", statusAddr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(fmt.Sprintf("http://%s/api/status", statusAddr))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	var report statusReport
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&report))
	assert.Equal(t, config.ModeRelay, report.Mode)
	assert.Equal(t, 1, report.SessionCount)
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, "alice", report.Sessions[0].Name)
	assert.GreaterOrEqual(t, report.Sessions[0].Traffic.FramesIn, int64(1))
	assert.Greater(t, report.UptimeSeconds, 0.0)
	assert.GreaterOrEqual(t, report.Goroutines.Active, int64(1))
}
