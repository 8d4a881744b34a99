// Package packet 提供不透明的消息缓冲区
//
// Packet 是流层搬运的唯一载体：一段可增长的字节缓冲，
// 附带类型化的大端读写游标。帧层元数据（压缩标志、长度）
// 存在帧头里，不在 Packet 内。
package packet

// Packet 消息缓冲区
//
// 写游标永远在已写数据末尾，读游标独立前移。
// 非并发安全，单个 Packet 同一时刻只属于一个拥有者。
type Packet struct {
	buf     []byte
	readPos int
}

// New 创建空消息
func New() *Packet {
	return &Packet{buf: make([]byte, 0, 64)}
}

// NewWithCapacity 创建预分配容量的空消息
func NewWithCapacity(capacity int) *Packet {
	if capacity < 0 {
		capacity = 0
	}
	return &Packet{buf: make([]byte, 0, capacity)}
}

// FromBytes 用现有字节构造消息
//
// 直接接管切片，不做拷贝；调用方之后不应再改写 b。
func FromBytes(b []byte) *Packet {
	return &Packet{buf: b}
}

// Bytes 返回已写入的数据窗口
func (p *Packet) Bytes() []byte {
	return p.buf
}

// Len 返回已写入的字节数
func (p *Packet) Len() int {
	return len(p.buf)
}

// IsEmpty 返回消息是否为空
func (p *Packet) IsEmpty() bool {
	return len(p.buf) == 0
}

// Reset 清空消息并复位读游标，保留底层容量
func (p *Packet) Reset() {
	p.buf = p.buf[:0]
	p.readPos = 0
}

// Remaining 返回读游标之后还未读的字节数
func (p *Packet) Remaining() int {
	return len(p.buf) - p.readPos
}

// Pos 返回当前读游标位置
func (p *Packet) Pos() int {
	return p.readPos
}

// Seek 移动读游标到绝对位置
func (p *Packet) Seek(pos int) error {
	if pos < 0 || pos > len(p.buf) {
		return errSeekOutOfRange(pos, len(p.buf))
	}
	p.readPos = pos
	return nil
}
