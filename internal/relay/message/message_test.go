package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "framewire/internal/core/errors"
	"framewire/internal/packet"
)

// TestMessage_RoundTrip 测试各种类报文编解码往返
func TestMessage_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *Message
	}{
		{"hello", Hello("alice")},
		{"hello empty name", Hello("")},
		{"text", Text("alice", "hello there")},
		{"text unicode", Text("小明", "你好，世界")},
		{"text empty body", Text("bob", "")},
		{"ping", Ping()},
		{"goodbye", Goodbye("client shutdown")},
		{"goodbye no reason", Goodbye("")},
		{"info", Info("alice joined")},
		{"peers query", PeersQuery()},
		{"peers reply", PeersReply([]string{"alice", "bob", "小明"})},
		{"peers reply single", PeersReply([]string{"alice"})},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded := tc.msg.Encode()
			got, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, tc.msg.Kind, got.Kind)
			assert.Equal(t, tc.msg.From, got.From)
			assert.Equal(t, tc.msg.Body, got.Body)
			assert.Equal(t, tc.msg.Names, got.Names)
			assert.Equal(t, 0, encoded.Remaining(), "decode should consume the packet")
		})
	}
}

// TestMessage_KindString 测试种类名
func TestMessage_KindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", KindHello.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "ping", KindPing.String())
	assert.Equal(t, "goodbye", KindGoodbye.String())
	assert.Equal(t, "info", KindInfo.String())
	assert.Equal(t, "peers", KindPeers.String())
	assert.Equal(t, "unknown", Kind(200).String())
}

// TestDecode_Rejects 测试非法输入被拒绝
func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	t.Run("nil packet", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(nil)
		assert.True(t, coreerrors.Is(err, coreerrors.ErrNilPacket))
	})

	t.Run("empty packet", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(packet.New())
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidPacket))
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		p := packet.New()
		p.WriteUint8(99)
		_, err := Decode(p)
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidPacket))
	})

	t.Run("hello missing name", func(t *testing.T) {
		t.Parallel()
		p := packet.New()
		p.WriteUint8(uint8(KindHello))
		_, err := Decode(p)
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidPacket))
	})

	t.Run("text truncated body", func(t *testing.T) {
		t.Parallel()
		p := packet.New()
		p.WriteUint8(uint8(KindText))
		p.WriteString("alice")
		_, err := Decode(p)
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidPacket))
	})

	t.Run("peers count exceeds entries", func(t *testing.T) {
		t.Parallel()
		p := packet.New()
		p.WriteUint8(uint8(KindPeers))
		p.WriteUint16(3)
		p.WriteString("alice")
		_, err := Decode(p)
		require.Error(t, err)
		assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidPacket))
	})
}
