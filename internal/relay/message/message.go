// Package message 定义中继层的应用报文信封
//
// 信封用 packet 的类型化游标做二进制编码，不走 JSON。
// 首字节是种类，其余字段按种类而定。
package message

import (
	coreerrors "framewire/internal/core/errors"
	"framewire/internal/packet"
)

// Kind 报文种类
type Kind uint8

const (
	// KindHello 入场报文，客户端连接后的第一帧，携带展示名
	KindHello Kind = 1

	// KindText 文本消息。客户端发出时 From 可留空，服务端转发时填写发送方名字
	KindText Kind = 2

	// KindPing 心跳，无字段。服务端只刷新会话活跃时间，不回应
	KindPing Kind = 3

	// KindGoodbye 离场报文，Body 为原因，可为空
	KindGoodbye Kind = 4

	// KindInfo 服务端通告（欢迎、加入、离开等），Body 为通告文本
	KindInfo Kind = 5

	// KindPeers 在线名单。客户端发出表示查询（无字段），服务端回应携带名单
	KindPeers Kind = 6
)

// String 返回种类名，用于日志
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindText:
		return "text"
	case KindPing:
		return "ping"
	case KindGoodbye:
		return "goodbye"
	case KindInfo:
		return "info"
	case KindPeers:
		return "peers"
	default:
		return "unknown"
	}
}

// Message 一条应用报文
//
// 字段按种类取用：hello 用 From；text 用 From 和 Body；
// goodbye 和 info 用 Body；peers 回应用 Names；ping 无字段。
type Message struct {
	Kind  Kind
	From  string
	Body  string
	Names []string
}

// Hello 构造入场报文
func Hello(name string) *Message {
	return &Message{Kind: KindHello, From: name}
}

// Text 构造文本消息
func Text(from, body string) *Message {
	return &Message{Kind: KindText, From: from, Body: body}
}

// Ping 构造心跳
func Ping() *Message {
	return &Message{Kind: KindPing}
}

// Goodbye 构造离场报文
func Goodbye(reason string) *Message {
	return &Message{Kind: KindGoodbye, Body: reason}
}

// Info 构造服务端通告
func Info(body string) *Message {
	return &Message{Kind: KindInfo, Body: body}
}

// PeersQuery 构造在线名单查询
func PeersQuery() *Message {
	return &Message{Kind: KindPeers}
}

// PeersReply 构造在线名单回应
func PeersReply(names []string) *Message {
	return &Message{Kind: KindPeers, Names: names}
}

// Encode 编码为数据包
func (m *Message) Encode() *packet.Packet {
	p := packet.NewWithCapacity(1 + len(m.From) + len(m.Body) + 4)
	p.WriteUint8(uint8(m.Kind))
	switch m.Kind {
	case KindHello:
		p.WriteString(m.From)
	case KindText:
		p.WriteString(m.From)
		p.WriteString(m.Body)
	case KindPing:
	case KindGoodbye, KindInfo:
		p.WriteString(m.Body)
	case KindPeers:
		p.WriteUint16(uint16(len(m.Names)))
		for _, name := range m.Names {
			p.WriteString(name)
		}
	}
	return p
}

// Decode 从数据包解码一条报文
//
// 数据包的读游标被消费。未知种类和字段缺失都是解码错误。
func Decode(p *packet.Packet) (*Message, error) {
	if p == nil {
		return nil, coreerrors.ErrNilPacket
	}
	k, err := p.ReadUint8()
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "message missing kind byte")
	}

	m := &Message{Kind: Kind(k)}
	switch m.Kind {
	case KindHello:
		if m.From, err = p.ReadString(); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "hello missing name")
		}
	case KindText:
		if m.From, err = p.ReadString(); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "text missing sender")
		}
		if m.Body, err = p.ReadString(); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "text missing body")
		}
	case KindPing:
	case KindGoodbye, KindInfo:
		if m.Body, err = p.ReadString(); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "message missing body")
		}
	case KindPeers:
		count, err := p.ReadUint16()
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidPacket, "peers missing count")
		}
		if count > 0 {
			m.Names = make([]string, 0, count)
			for i := 0; i < int(count); i++ {
				name, err := p.ReadString()
				if err != nil {
					return nil, coreerrors.Wrapf(err, coreerrors.CodeInvalidPacket, "peers entry %d truncated", i)
				}
				m.Names = append(m.Names, name)
			}
		}
	default:
		return nil, coreerrors.Newf(coreerrors.CodeInvalidPacket, "unknown message kind %d", k)
	}
	return m, nil
}
