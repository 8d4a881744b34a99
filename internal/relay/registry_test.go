package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/relay/message"
	"framewire/internal/stream"
	"framewire/internal/transport"
)

// newTestSession 创建一条管道上的会话，返回会话和客户端侧的对端流
func newTestSession(t *testing.T, id, name string) (*Session, *stream.PacketStream) {
	t.Helper()

	ta, tb := transport.NewBufferPipePair()
	ps, err := stream.NewPacketStream(ta, nil, context.Background())
	require.NoError(t, err)
	peer, err := stream.NewPacketStream(tb, nil, context.Background())
	require.NoError(t, err)

	sess := NewSession(id, "pipe", ps, context.Background())
	sess.SetName(name)
	t.Cleanup(func() {
		_ = sess.CloseWithError()
		_ = peer.CloseWithError()
	})
	return sess, peer
}

// recvMessage 读取并解码下一条报文
func recvMessage(t *testing.T, ps *stream.PacketStream) *message.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := ps.ReadWait(ctx)
	require.NoError(t, err)
	m, err := message.Decode(p)
	require.NoError(t, err)
	return m
}

// TestNewRegistry_Validation 测试参数校验
func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(0, nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidParam))

	r, err := NewRegistry(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

// TestRegistry_CapacityEviction 测试容量挤出关闭最老会话
func TestRegistry_CapacityEviction(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(2, corelog.NewNopLogger())
	require.NoError(t, err)

	a, peerA := newTestSession(t, "sess-a", "alice")
	b, _ := newTestSession(t, "sess-b", "bob")
	c, _ := newTestSession(t, "sess-c", "carol")

	r.Add(a)
	r.Add(b)
	require.Equal(t, 2, r.Len())

	r.Add(c)
	assert.Equal(t, 2, r.Len())
	assert.True(t, a.IsClosed(), "oldest session should be closed on eviction")
	assert.False(t, b.IsClosed())
	assert.False(t, c.IsClosed())

	// 被挤出方先收到告别帧
	m := recvMessage(t, peerA)
	assert.Equal(t, message.KindGoodbye, m.Kind)
	assert.Equal(t, "session evicted", m.Body)
}

// TestRegistry_TouchRefreshesOrder 测试活跃刷新改变挤出顺序
func TestRegistry_TouchRefreshesOrder(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(2, corelog.NewNopLogger())
	require.NoError(t, err)

	a, _ := newTestSession(t, "sess-a", "alice")
	b, _ := newTestSession(t, "sess-b", "bob")
	c, _ := newTestSession(t, "sess-c", "carol")

	r.Add(a)
	r.Add(b)
	r.Touch("sess-a")
	r.Add(c)

	assert.False(t, a.IsClosed(), "recently touched session should survive")
	assert.True(t, b.IsClosed(), "stale session should be evicted")

	got, ok := r.Get("sess-a")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = r.Get("sess-b")
	assert.False(t, ok)
}

// TestRegistry_OthersAndNames 测试名单查询
func TestRegistry_OthersAndNames(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(8, corelog.NewNopLogger())
	require.NoError(t, err)

	a, _ := newTestSession(t, "sess-a", "alice")
	b, _ := newTestSession(t, "sess-b", "bob")
	unnamed, _ := newTestSession(t, "sess-x", "")

	r.Add(a)
	r.Add(b)
	r.Add(unnamed)

	others := r.Others("sess-a")
	require.Len(t, others, 2)
	for _, s := range others {
		assert.NotEqual(t, "sess-a", s.ID())
	}

	assert.ElementsMatch(t, []string{"alice", "bob"}, r.Names())

	// 关闭后不再出现在名单里
	_ = b.CloseWithError()
	assert.ElementsMatch(t, []string{"alice"}, r.Names())
	assert.Len(t, r.Others("sess-a"), 1)
}

// TestRegistry_RemoveClosedIsSilent 测试先关后删不补告别帧
func TestRegistry_RemoveClosedIsSilent(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(4, corelog.NewNopLogger())
	require.NoError(t, err)

	a, peerA := newTestSession(t, "sess-a", "alice")
	r.Add(a)

	require.NoError(t, a.CloseWithError())
	assert.True(t, r.Remove("sess-a"))
	assert.Equal(t, 0, r.Len())

	// 对端只看到传输关闭，没有告别帧
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, readErr := peerA.ReadWait(ctx)
	require.Error(t, readErr)
	assert.True(t, coreerrors.IsFatalStream(readErr))
}

// TestRegistry_Purge 测试清空关闭全部会话
func TestRegistry_Purge(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(4, corelog.NewNopLogger())
	require.NoError(t, err)

	a, _ := newTestSession(t, "sess-a", "alice")
	b, _ := newTestSession(t, "sess-b", "bob")
	r.Add(a)
	r.Add(b)

	r.Purge()
	assert.Equal(t, 0, r.Len())
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}
