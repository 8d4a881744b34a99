package transport

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "framewire/internal/core/errors"
)

// TestRegistry_BuiltinProtocols 测试内建协议已注册
func TestRegistry_BuiltinProtocols(t *testing.T) {
	t.Parallel()

	assert.True(t, IsProtocolAvailable("tcp"))
	assert.False(t, IsProtocolAvailable("carrier-pigeon"))

	info, ok := GetProtocol("tcp")
	require.True(t, ok)
	assert.Equal(t, "tcp", info.Name)
	assert.NotNil(t, info.Dialer)
	assert.NotNil(t, info.Listener)
}

// TestRegistry_PriorityOrder 测试协议列表按优先级排序
func TestRegistry_PriorityOrder(t *testing.T) {
	t.Parallel()

	RegisterProtocol("test-first", 1, func(ctx context.Context, address string) (Transport, error) {
		a, _ := NewBufferPipePair()
		return a, nil
	}, nil)
	RegisterProtocol("test-last", 9999, func(ctx context.Context, address string) (Transport, error) {
		a, _ := NewBufferPipePair()
		return a, nil
	}, nil)

	protocols := GetRegisteredProtocols()
	require.GreaterOrEqual(t, len(protocols), 3)

	assert.True(t, sort.SliceIsSorted(protocols, func(i, j int) bool {
		return protocols[i].Priority < protocols[j].Priority
	}))
	assert.Equal(t, "test-first", protocols[0].Name)
	assert.Equal(t, "test-last", protocols[len(protocols)-1].Name)

	names := GetAvailableProtocolNames()
	assert.Equal(t, len(protocols), len(names))
	assert.Equal(t, "test-first", names[0])
}

// TestRegistry_DialAndListen 测试统一入口的错误路径
func TestRegistry_DialAndListen(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "carrier-pigeon", "nowhere:0")
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeProtocolError))

	_, err = Listen("carrier-pigeon", "nowhere:0")
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeProtocolError))

	// 只注册了拨号的协议不能监听
	RegisterProtocol("test-dial-only", 500, func(ctx context.Context, address string) (Transport, error) {
		a, _ := NewBufferPipePair()
		return a, nil
	}, nil)
	_, err = Listen("test-dial-only", "nowhere:0")
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeProtocolError))

	tr, err := Dial(context.Background(), "test-dial-only", "nowhere:0")
	require.NoError(t, err)
	assert.NoError(t, tr.Close())
}
