package packet

import (
	"encoding/binary"
	"math"

	coreerrors "framewire/internal/core/errors"
)

// 所有多字节整数一律大端序，与帧头保持一致。

func errSeekOutOfRange(pos, size int) error {
	return coreerrors.Newf(coreerrors.CodeInvalidParam, "seek position %d out of range [0,%d]", pos, size)
}

func errShortBuffer(want, have int) error {
	return coreerrors.New(coreerrors.CodeShortBuffer, "not enough data").
		WithDetailInt("want", int64(want)).
		WithDetailInt("have", int64(have))
}

// ============================================================================
// 写入
// ============================================================================

// WriteUint8 追加一个字节
func (p *Packet) WriteUint8(v uint8) {
	p.buf = append(p.buf, v)
}

// WriteUint16 追加大端 uint16
func (p *Packet) WriteUint16(v uint16) {
	p.buf = binary.BigEndian.AppendUint16(p.buf, v)
}

// WriteUint32 追加大端 uint32
func (p *Packet) WriteUint32(v uint32) {
	p.buf = binary.BigEndian.AppendUint32(p.buf, v)
}

// WriteUint64 追加大端 uint64
func (p *Packet) WriteUint64(v uint64) {
	p.buf = binary.BigEndian.AppendUint64(p.buf, v)
}

// WriteInt32 追加大端 int32
func (p *Packet) WriteInt32(v int32) {
	p.WriteUint32(uint32(v))
}

// WriteInt64 追加大端 int64
func (p *Packet) WriteInt64(v int64) {
	p.WriteUint64(uint64(v))
}

// WriteBool 追加布尔值，单字节 0/1
func (p *Packet) WriteBool(v bool) {
	if v {
		p.buf = append(p.buf, 1)
	} else {
		p.buf = append(p.buf, 0)
	}
}

// WriteFloat64 追加大端 IEEE 754 双精度浮点
func (p *Packet) WriteFloat64(v float64) {
	p.WriteUint64(math.Float64bits(v))
}

// WriteBytes 追加长度前缀（uint32）+ 内容
func (p *Packet) WriteBytes(b []byte) {
	p.WriteUint32(uint32(len(b)))
	p.buf = append(p.buf, b...)
}

// WriteString 追加长度前缀（uint32）+ UTF-8 内容
func (p *Packet) WriteString(s string) {
	p.WriteUint32(uint32(len(s)))
	p.buf = append(p.buf, s...)
}

// WriteRaw 追加裸字节，不带长度前缀
func (p *Packet) WriteRaw(b []byte) {
	p.buf = append(p.buf, b...)
}

// ============================================================================
// 读取
// ============================================================================

// ReadUint8 读取一个字节
func (p *Packet) ReadUint8() (uint8, error) {
	if p.Remaining() < 1 {
		return 0, errShortBuffer(1, p.Remaining())
	}
	v := p.buf[p.readPos]
	p.readPos++
	return v, nil
}

// ReadUint16 读取大端 uint16
func (p *Packet) ReadUint16() (uint16, error) {
	if p.Remaining() < 2 {
		return 0, errShortBuffer(2, p.Remaining())
	}
	v := binary.BigEndian.Uint16(p.buf[p.readPos:])
	p.readPos += 2
	return v, nil
}

// ReadUint32 读取大端 uint32
func (p *Packet) ReadUint32() (uint32, error) {
	if p.Remaining() < 4 {
		return 0, errShortBuffer(4, p.Remaining())
	}
	v := binary.BigEndian.Uint32(p.buf[p.readPos:])
	p.readPos += 4
	return v, nil
}

// ReadUint64 读取大端 uint64
func (p *Packet) ReadUint64() (uint64, error) {
	if p.Remaining() < 8 {
		return 0, errShortBuffer(8, p.Remaining())
	}
	v := binary.BigEndian.Uint64(p.buf[p.readPos:])
	p.readPos += 8
	return v, nil
}

// ReadInt32 读取大端 int32
func (p *Packet) ReadInt32() (int32, error) {
	v, err := p.ReadUint32()
	return int32(v), err
}

// ReadInt64 读取大端 int64
func (p *Packet) ReadInt64() (int64, error) {
	v, err := p.ReadUint64()
	return int64(v), err
}

// ReadBool 读取布尔值，非零为 true
func (p *Packet) ReadBool() (bool, error) {
	v, err := p.ReadUint8()
	return v != 0, err
}

// ReadFloat64 读取大端 IEEE 754 双精度浮点
func (p *Packet) ReadFloat64() (float64, error) {
	v, err := p.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBytes 读取长度前缀的字节串
//
// 长度超出剩余数据视为数据损坏，返回错误且游标不动。
func (p *Packet) ReadBytes() ([]byte, error) {
	if p.Remaining() < 4 {
		return nil, errShortBuffer(4, p.Remaining())
	}
	length := binary.BigEndian.Uint32(p.buf[p.readPos:])
	if uint32(p.Remaining()-4) < length {
		return nil, errShortBuffer(int(length)+4, p.Remaining())
	}
	p.readPos += 4
	b := make([]byte, length)
	copy(b, p.buf[p.readPos:p.readPos+int(length)])
	p.readPos += int(length)
	return b, nil
}

// ReadString 读取长度前缀的字符串
func (p *Packet) ReadString() (string, error) {
	b, err := p.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadRaw 读取 n 个裸字节
func (p *Packet) ReadRaw(n int) ([]byte, error) {
	if n < 0 {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidParam, "negative read size %d", n)
	}
	if p.Remaining() < n {
		return nil, errShortBuffer(n, p.Remaining())
	}
	b := make([]byte, n)
	copy(b, p.buf[p.readPos:p.readPos+n])
	p.readPos += n
	return b, nil
}
