// Package stream 实现帧式消息流
//
// 线缆格式（固定大端）：
//
//	帧   := 帧头(4字节) 帧体(N字节)
//	帧头 := bit31 压缩标志 | bit30..0 帧体长度
//	帧体 := 加密( 压缩标志 ? GZIP(载荷) : 载荷 )
//
// 帧体永远是密文；长度指加密后的字节数，上限 2^31-1。
package stream

import (
	"encoding/binary"

	coreerrors "framewire/internal/core/errors"
)

const (
	// HeaderSize 帧头字节数
	HeaderSize = 4

	// DefaultReadBufferSize 默认传输读缓冲大小
	DefaultReadBufferSize = 512

	// DefaultCompressionThreshold 明文超过该字节数才尝试压缩
	DefaultCompressionThreshold = 200

	// MaxFrameSize 帧体长度上限（帧头只有 31 位可用）
	MaxFrameSize = 1<<31 - 1
)

const (
	// compressedFlag 帧头最高位为压缩标志
	compressedFlag = uint32(1) << 31

	// lengthMask 帧头低 31 位为长度
	lengthMask = compressedFlag - 1
)

// encodeHeader 组装帧头
//
// 调用方保证 length 不超过 MaxFrameSize。
func encodeHeader(length uint32, compressed bool) [HeaderSize]byte {
	word := length & lengthMask
	if compressed {
		word |= compressedFlag
	}
	var h [HeaderSize]byte
	binary.BigEndian.PutUint32(h[:], word)
	return h
}

// decodeHeader 解析帧头
func decodeHeader(h []byte) (length uint32, compressed bool) {
	word := binary.BigEndian.Uint32(h)
	return word & lengthMask, word&compressedFlag != 0
}

// validateBodyLength 校验帧头里的帧体长度
//
// 长度为 0 或超过配置上限说明字节流已经失去帧边界，按损坏处理。
func validateBodyLength(length uint32, maxFrame uint32) error {
	if length == 0 {
		return coreerrors.New(coreerrors.CodeCorruptFrame, "frame header declares zero-length body")
	}
	if length > maxFrame {
		return coreerrors.Newf(coreerrors.CodeCorruptFrame,
			"frame header declares %d-byte body, limit %d", length, maxFrame)
	}
	return nil
}
