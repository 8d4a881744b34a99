package stream

import (
	"compress/gzip"
	"context"
	"io"

	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/packet"
	"framewire/internal/stream/cipher"
	"framewire/internal/transport"
)

// readState 读方向状态机
type readState int

const (
	// stateAwaitingHeader 正在凑齐 4 字节帧头
	stateAwaitingHeader readState = iota
	// stateAwaitingBody 帧头已解析，正在凑齐帧体
	stateAwaitingBody
)

// Options 流配置
type Options struct {
	// Cipher 帧体加解密实现，nil 使用内置密钥的 AES-CBC
	Cipher cipher.Cipher

	// ReadBufferSize 传输读缓冲大小，0 使用 DefaultReadBufferSize
	ReadBufferSize int

	// CompressionThreshold 明文超过该字节数才尝试压缩，
	// 0 使用 DefaultCompressionThreshold，负数关闭压缩
	CompressionThreshold int

	// CompressionLevel gzip 压缩级别，0 使用 gzip.DefaultCompression
	CompressionLevel int

	// MaxFrameSize 帧体长度上限，0 使用 MaxFrameSize
	MaxFrameSize uint32

	// Logger 日志实例，nil 使用全局默认
	Logger corelog.Logger
}

// DefaultOptions 返回默认流配置
func DefaultOptions() *Options {
	return &Options{
		Cipher:               cipher.Default(),
		ReadBufferSize:       DefaultReadBufferSize,
		CompressionThreshold: DefaultCompressionThreshold,
		CompressionLevel:     gzip.DefaultCompression,
		MaxFrameSize:         MaxFrameSize,
		Logger:               corelog.Default(),
	}
}

// PacketStream 在一条传输连接上收发帧式数据包
//
// 数据路径不加锁。约定每个方向只有一个属主协程：
// Read/ReadWait 只能由同一个协程调用，Write 只能由同一个协程调用，
// 两个方向的状态互不相交，读写协程可以不同。
// 违反该约定的并发调用行为未定义。
type PacketStream struct {
	transport transport.Transport
	cipher    cipher.Cipher

	// 读方向状态，属主为读协程
	readBuf        []byte
	readPos        int
	dataLen        int
	state          readState
	header         [HeaderSize]byte
	headerFill     int
	body           []byte
	bodyFill       int
	bodyCompressed bool
	readErr        error

	// 写方向状态，属主为写协程
	writeErr error

	// 以下字段构造后只读
	maxFrame          uint32
	compressThreshold int
	compressLevel     int

	meter  *TrafficMeter
	logger corelog.Logger

	dispose.Dispose
}

// NewPacketStream 创建数据包流
//
// opts 为 nil 时使用 DefaultOptions。流关闭时会关闭底层传输。
func NewPacketStream(t transport.Transport, opts *Options, parentCtx context.Context) (*PacketStream, error) {
	if t == nil {
		return nil, coreerrors.ErrNilTransport
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	c := opts.Cipher
	if c == nil {
		c = cipher.Default()
	}
	bufSize := opts.ReadBufferSize
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	threshold := opts.CompressionThreshold
	if threshold == 0 {
		threshold = DefaultCompressionThreshold
	}
	level := opts.CompressionLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	maxFrame := opts.MaxFrameSize
	if maxFrame == 0 || maxFrame > MaxFrameSize {
		maxFrame = MaxFrameSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = corelog.Default()
	}

	ps := &PacketStream{
		transport:         t,
		cipher:            c,
		readBuf:           make([]byte, bufSize),
		state:             stateAwaitingHeader,
		maxFrame:          maxFrame,
		compressThreshold: threshold,
		compressLevel:     level,
		meter:             NewTrafficMeter(),
		logger:            logger,
	}
	ps.SetCtx(parentCtx, ps.onClose)
	return ps, nil
}

// NewPacketStreamPair 在一收一发两个单向流上创建数据包流
//
// 读写可以来自不同的底层连接，常见于把两条连接拼成一条逻辑流的转发场景。
func NewPacketStreamPair(source transport.Source, sink transport.Sink, opts *Options, parentCtx context.Context) (*PacketStream, error) {
	if source == nil {
		return nil, coreerrors.ErrReaderNil
	}
	if sink == nil {
		return nil, coreerrors.ErrWriterNil
	}
	return NewPacketStream(transport.NewPipeTransport(source, sink), opts, parentCtx)
}

// Transport 返回底层传输
func (ps *PacketStream) Transport() transport.Transport {
	return ps.transport
}

// Meter 返回本条流的流量计数器
func (ps *PacketStream) Meter() *TrafficMeter {
	return ps.meter
}

// onClose 关闭底层传输
func (ps *PacketStream) onClose() error {
	if err := ps.transport.Close(); err != nil {
		return coreerrors.NewTransportError("close", "failed to close transport", err)
	}
	return nil
}

// ============================================================================
// 写方向
// ============================================================================

// Write 把一个数据包封帧后写入传输
//
// 空包静默丢弃。明文超过压缩阈值时尝试 gzip，只有压缩结果
// 严格更小才采用。帧体永远经过加密。加密后超过帧长上限返回
// ErrPacketTooLarge，此时未写出任何字节，流仍可继续使用。
// 传输写入失败后写方向进入坏死状态，之后的 Write 持续报错。
func (ps *PacketStream) Write(pkt *packet.Packet) error {
	if ps.IsClosed() {
		return coreerrors.ErrStreamClosed
	}
	if ps.writeErr != nil {
		return ps.writeErr
	}
	if pkt == nil {
		return coreerrors.ErrNilPacket
	}
	if pkt.IsEmpty() {
		return nil
	}

	plain := pkt.Bytes()
	payload := plain
	compressed := false
	if ps.compressThreshold >= 0 && len(plain) > ps.compressThreshold {
		shrunk, err := compressGzip(plain, ps.compressLevel)
		if err != nil {
			// 压缩只是优化，失败时退回明文发送
			ps.logger.Warnf("PacketStream: compression failed, sending uncompressed: %v", err)
		} else if len(shrunk) < len(plain) {
			payload = shrunk
			compressed = true
		}
	}

	body, err := ps.cipher.Encrypt(payload)
	if err != nil {
		return coreerrors.NewEncryptionError("write_frame", "failed to encrypt frame body", err)
	}
	if uint64(len(body)) > uint64(ps.maxFrame) {
		return coreerrors.Wrapf(coreerrors.ErrPacketTooLarge, coreerrors.CodePacketTooLarge,
			"encrypted body is %d bytes, limit %d", len(body), ps.maxFrame)
	}

	header := encodeHeader(uint32(len(body)), compressed)
	if err := ps.writeFull(header[:]); err != nil {
		ps.markWriteFatal(err)
		return err
	}
	if err := ps.writeFull(body); err != nil {
		ps.markWriteFatal(err)
		return err
	}

	ps.meter.addOut(int64(HeaderSize + len(body)))
	return nil
}

// writeFull 把整块数据写入传输，必要时循环补写
func (ps *PacketStream) writeFull(data []byte) error {
	total := 0
	for total < len(data) {
		select {
		case <-ps.Ctx().Done():
			return coreerrors.Wrap(ps.Ctx().Err(), coreerrors.CodeCancelled, "write interrupted by shutdown")
		default:
		}

		n, err := ps.transport.Write(data[total:])
		total += n
		if err != nil {
			return coreerrors.NewTransportError("write_full", "transport write failed", err)
		}
		if n == 0 {
			continue
		}
	}
	return nil
}

// markWriteFatal 写方向进入坏死状态
//
// 帧头和帧体必须原子成对出现，部分写出后字节流已失去帧边界，
// 不能再发送任何数据。
func (ps *PacketStream) markWriteFatal(err error) {
	ps.writeErr = err
	ps.logger.Errorf("PacketStream: write side broken: %v", err)
}

// ============================================================================
// 读方向
// ============================================================================

// Read 尝试从传输解出一个数据包，不阻塞
//
// 每次调用最多返回一个包。没有攒齐完整帧且传输暂无数据时返回
// (nil, nil)。缓冲里残留的后续帧由下一次 Read 继续消费，不会
// 触碰传输。传输关闭、帧头损坏、解密或解压失败都是致命错误，
// 读方向进入坏死状态，之后的 Read 持续返回同一个错误。
func (ps *PacketStream) Read() (*packet.Packet, error) {
	if ps.IsClosed() {
		return nil, coreerrors.ErrStreamClosed
	}
	if ps.readErr != nil {
		return nil, ps.readErr
	}

	for {
		// 先吃掉缓冲里已有的字节
		for ps.readPos < ps.dataLen {
			pkt, err := ps.consumeBuffered()
			if err != nil {
				ps.markReadFatal(err)
				return nil, err
			}
			if pkt != nil {
				return pkt, nil
			}
		}
		ps.readPos, ps.dataLen = 0, 0

		if !ps.transport.DataAvailable() {
			return nil, nil
		}

		n, err := ps.transport.Read(ps.readBuf)
		if err != nil || n <= 0 {
			if err == nil {
				err = io.EOF
			}
			ferr := coreerrors.NewTransportError("read_refill", "transport closed", err)
			ps.markReadFatal(ferr)
			return nil, ferr
		}
		ps.readPos, ps.dataLen = 0, n
	}
}

// ReadWait 阻塞读取一个数据包
//
// 在 Read 的基础上等待传输可读，直到解出一个包、流出错或
// ctx 取消。与 Read 共享读方向状态，属主约定相同。
func (ps *PacketStream) ReadWait(ctx context.Context) (*packet.Packet, error) {
	for {
		pkt, err := ps.Read()
		if err != nil || pkt != nil {
			return pkt, err
		}
		if err := ps.transport.WaitReadable(ctx); err != nil {
			return nil, err
		}
	}
}

// consumeBuffered 按当前状态消费缓冲字节，凑齐一帧时返回解包结果
//
// 调用方保证 readPos < dataLen。
func (ps *PacketStream) consumeBuffered() (*packet.Packet, error) {
	switch ps.state {
	case stateAwaitingHeader:
		n := copy(ps.header[ps.headerFill:], ps.readBuf[ps.readPos:ps.dataLen])
		ps.headerFill += n
		ps.readPos += n
		if ps.headerFill < HeaderSize {
			return nil, nil
		}

		length, compressed := decodeHeader(ps.header[:])
		if err := validateBodyLength(length, ps.maxFrame); err != nil {
			return nil, err
		}
		ps.bodyCompressed = compressed
		ps.body = make([]byte, length)
		ps.bodyFill = 0
		ps.state = stateAwaitingBody
		return nil, nil

	case stateAwaitingBody:
		n := copy(ps.body[ps.bodyFill:], ps.readBuf[ps.readPos:ps.dataLen])
		ps.bodyFill += n
		ps.readPos += n
		if ps.bodyFill < len(ps.body) {
			return nil, nil
		}
		return ps.finishFrame()
	}
	return nil, nil
}

// finishFrame 帧体攒齐后解密解压，产出数据包
func (ps *PacketStream) finishFrame() (*packet.Packet, error) {
	wireBytes := int64(HeaderSize + len(ps.body))

	plain, err := ps.cipher.Decrypt(ps.body)
	if err != nil {
		return nil, coreerrors.NewEncryptionError("read_frame", "failed to decrypt frame body", err)
	}
	if ps.bodyCompressed {
		plain, err = decompressGzip(plain, int64(ps.maxFrame))
		if err != nil {
			return nil, err
		}
	}

	ps.meter.addIn(wireBytes)
	ps.resetFrameState()
	return packet.FromBytes(plain), nil
}

// resetFrameState 回到等待帧头状态
func (ps *PacketStream) resetFrameState() {
	ps.state = stateAwaitingHeader
	ps.headerFill = 0
	ps.body = nil
	ps.bodyFill = 0
	ps.bodyCompressed = false
}

// markReadFatal 读方向进入坏死状态
func (ps *PacketStream) markReadFatal(err error) {
	ps.readErr = err
	ps.logger.Errorf("PacketStream: read side broken: %v", err)
}
