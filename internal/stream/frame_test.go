package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "framewire/internal/core/errors"
)

// TestHeaderCodec_RoundTrip 测试帧头编解码回环
func TestHeaderCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		length     uint32
		compressed bool
	}{
		{"one byte", 1, false},
		{"one byte compressed", 1, true},
		{"threshold", DefaultCompressionThreshold, false},
		{"above threshold compressed", DefaultCompressionThreshold + 1, true},
		{"read buffer size", DefaultReadBufferSize, false},
		{"max frame", MaxFrameSize, false},
		{"max frame compressed", MaxFrameSize, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := encodeHeader(tc.length, tc.compressed)
			length, compressed := decodeHeader(h[:])
			assert.Equal(t, tc.length, length)
			assert.Equal(t, tc.compressed, compressed)
		})
	}
}

// TestHeaderCodec_WireLayout 测试帧头的线上字节布局
func TestHeaderCodec_WireLayout(t *testing.T) {
	t.Parallel()

	// 大端长度，未压缩时最高位为 0
	h := encodeHeader(0x01020304, false)
	assert.Equal(t, [HeaderSize]byte{0x01, 0x02, 0x03, 0x04}, h)

	// 压缩标志只占最高位
	h = encodeHeader(1, true)
	assert.Equal(t, [HeaderSize]byte{0x80, 0x00, 0x00, 0x01}, h)

	// 长度上限占满剩余 31 位
	h = encodeHeader(MaxFrameSize, true)
	assert.Equal(t, [HeaderSize]byte{0xFF, 0xFF, 0xFF, 0xFF}, h)
}

// TestValidateBodyLength 测试帧体长度校验
func TestValidateBodyLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		length   uint32
		maxFrame uint32
		wantErr  bool
	}{
		{"zero length", 0, MaxFrameSize, true},
		{"minimum valid", 1, MaxFrameSize, false},
		{"at limit", 1024, 1024, false},
		{"above limit", 1025, 1024, true},
		{"absolute max", MaxFrameSize, MaxFrameSize, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validateBodyLength(tc.length, tc.maxFrame)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, coreerrors.IsCode(err, coreerrors.CodeCorruptFrame))
				assert.True(t, coreerrors.IsFatalStream(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
