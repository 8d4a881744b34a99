package transport

import "context"

// PipeTransport 把一收一发两个单向流组成一条传输
//
// 适合单向代理或转发场景：从 A 的读端收、向 B 的写端发。
// 任何 Transport 都同时满足 Source 和 Sink，可以直接当半边用。
type PipeTransport struct {
	source Source
	sink   Sink
}

// NewPipeTransport 组合读端和写端
func NewPipeTransport(source Source, sink Sink) *PipeTransport {
	return &PipeTransport{source: source, sink: sink}
}

func (p *PipeTransport) Read(b []byte) (int, error) {
	return p.source.Read(b)
}

func (p *PipeTransport) Write(b []byte) (int, error) {
	return p.sink.Write(b)
}

// DataAvailable 非阻塞探测读端是否可读
func (p *PipeTransport) DataAvailable() bool {
	return p.source.DataAvailable()
}

// WaitReadable 阻塞等待读端可读
func (p *PipeTransport) WaitReadable(ctx context.Context) error {
	return p.source.WaitReadable(ctx)
}

// Close 依次关闭读端和写端
func (p *PipeTransport) Close() error {
	rerr := p.source.Close()
	werr := p.sink.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
