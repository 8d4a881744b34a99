package errors

// 预定义哨兵错误（用于 errors.Is 比较）
// 这些错误用于快速类型检查，不包含详细信息
var (
	// 请求错误
	ErrInvalidParam    = New(CodeInvalidParam, "invalid parameter")
	ErrValidationError = New(CodeValidationError, "validation error")
	ErrConfigError     = New(CodeConfigError, "invalid configuration")

	// 系统错误
	ErrInternal    = New(CodeInternal, "internal error")
	ErrNetwork     = New(CodeNetworkError, "network error")
	ErrTimeout     = New(CodeTimeout, "operation timeout")
	ErrCancelled   = New(CodeCancelled, "operation cancelled")
	ErrRateLimited = New(CodeRateLimited, "rate limit exceeded")

	// 流/连接错误
	ErrStreamClosed    = New(CodeStreamClosed, "stream closed")
	ErrTransportClosed = New(CodeTransportClosed, "transport closed")
	ErrConnectionError = New(CodeConnectionError, "connection error")
	ErrListenerClosed  = New(CodeConnectionError, "listener closed")
	ErrSessionEvicted  = New(CodeSessionEvicted, "session evicted")

	// 数据帧错误
	ErrInvalidPacket    = New(CodeInvalidPacket, "invalid packet")
	ErrPacketTooLarge   = New(CodePacketTooLarge, "packet too large")
	ErrCorruptFrame     = New(CodeCorruptFrame, "corrupt frame")
	ErrShortBuffer      = New(CodeShortBuffer, "short buffer")
	ErrCompressionError = New(CodeCompressionError, "compression error")
	ErrEncryptionError  = New(CodeEncryptionError, "encryption error")

	// 流处理参数错误
	ErrNilTransport = New(CodeInvalidParam, "transport is nil")
	ErrNilPacket    = New(CodeInvalidParam, "packet is nil")
	ErrReaderNil    = New(CodeInvalidParam, "reader is nil")
	ErrWriterNil    = New(CodeInvalidParam, "writer is nil")
	ErrInvalidRate  = New(CodeInvalidParam, "invalid rate limit")
)

// 错误检查辅助函数

// IsSystemError 检查是否为系统错误
func IsSystemError(err error) bool {
	return IsCode(err, CodeInternal) ||
		IsCode(err, CodeNetworkError) ||
		IsCode(err, CodeTimeout)
}

// IsRetryable 检查错误是否可重试
//
// 帧层的致命错误永远不可重试；只有网络抖动类错误
// 由应用层决定是否重连。
func IsRetryable(err error) bool {
	if IsFatalStream(err) {
		return false
	}
	switch GetCode(err) {
	case CodeTimeout, CodeNetworkError, CodeRateLimited:
		return true
	default:
		return false
	}
}
