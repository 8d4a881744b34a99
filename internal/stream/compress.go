package stream

import (
	"bytes"
	"compress/gzip"
	"io"

	coreerrors "framewire/internal/core/errors"
)

// compressGzip 对整块载荷做 gzip 压缩
func compressGzip(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, coreerrors.NewCompressionError("compress", "failed to create gzip writer", err)
	}
	if _, err := gw.Write(data); err != nil {
		_ = gw.Close()
		return nil, coreerrors.NewCompressionError("compress", "failed to compress payload", err)
	}
	if err := gw.Close(); err != nil {
		return nil, coreerrors.NewCompressionError("compress", "failed to flush gzip writer", err)
	}
	return buf.Bytes(), nil
}

// decompressGzip 解开整块帧体
//
// maxSize 限制解压结果大小，防止恶意构造的压缩炸弹。
func decompressGzip(data []byte, maxSize int64) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, coreerrors.NewCompressionError("decompress", "failed to create gzip reader", err)
	}
	defer func() { _ = gr.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(gr, maxSize+1)); err != nil {
		return nil, coreerrors.NewCompressionError("decompress", "failed to decompress frame body", err)
	}
	if int64(buf.Len()) > maxSize {
		return nil, coreerrors.Newf(coreerrors.CodeCompressionError,
			"decompressed payload exceeds %d bytes", maxSize)
	}
	return buf.Bytes(), nil
}
