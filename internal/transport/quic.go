//go:build !no_quic

// QUIC 传输层实现。单连接单流模型，
// 使用 -tags no_quic 可以排除此协议以减小二进制体积。
package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
)

func init() {
	RegisterProtocol("quic", 20, DialQUIC, ListenQUIC) // 优先级 20
}

const (
	// quicALPN 协议协商标识，两端必须一致
	quicALPN = "framewire"

	quicMaxIdleTimeout  = 30 * time.Second
	quicKeepAlivePeriod = 10 * time.Second

	// quicAcceptStreamTimeout 等待入站连接打开首个流的时限
	quicAcceptStreamTimeout = 10 * time.Second
)

// quicTransport 一条 QUIC 连接上的单个流
type quicTransport struct {
	*ConnTransport
	conn      *quic.Conn
	closeOnce sync.Once
}

func newQUICTransport(conn *quic.Conn, stream *quic.Stream) *quicTransport {
	return &quicTransport{
		ConnTransport: NewConnTransport(&quicStreamConn{conn: conn, stream: stream}, context.Background()),
		conn:          conn,
	}
}

// Close 关闭流和连接
func (t *quicTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.ConnTransport.Close()
		_ = t.conn.CloseWithError(0, "normal closure")
	})
	return err
}

// quicStreamConn 把 quic.Stream 适配成 net.Conn
//
// 地址信息来自所属连接，流自身提供读写和超时。
type quicStreamConn struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (c *quicStreamConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicStreamConn) Write(p []byte) (int, error) { return c.stream.Write(p) }
func (c *quicStreamConn) Close() error                { return c.stream.Close() }
func (c *quicStreamConn) LocalAddr() net.Addr         { return c.conn.LocalAddr() }
func (c *quicStreamConn) RemoteAddr() net.Addr        { return c.conn.RemoteAddr() }

func (c *quicStreamConn) SetDeadline(t time.Time) error {
	if err := c.stream.SetReadDeadline(t); err != nil {
		return err
	}
	return c.stream.SetWriteDeadline(t)
}

func (c *quicStreamConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

func (c *quicStreamConn) SetWriteDeadline(t time.Time) error {
	return c.stream.SetWriteDeadline(t)
}

// DialQUIC 建立 QUIC 连接并打开一个流
func DialQUIC(ctx context.Context, address string) (Transport, error) {
	corelog.Debugf("Transport: dialing QUIC to %s", address)

	// 服务端使用自签名证书，跳过验证；机密性由帧流层加密承担
	tlsConf := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{quicALPN},
	}
	quicConf := &quic.Config{
		MaxIdleTimeout:  quicMaxIdleTimeout,
		KeepAlivePeriod: quicKeepAlivePeriod,
	}

	conn, err := quic.DialAddr(ctx, address, tlsConf, quicConf)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to dial QUIC")
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to open QUIC stream")
	}

	corelog.Infof("Transport: QUIC connection established to %s", address)
	return newQUICTransport(conn, stream), nil
}

// quicListener QUIC 监听器
type quicListener struct {
	ln *quic.Listener
}

// ListenQUIC 启动 QUIC 监听，使用运行时生成的自签名证书
func ListenQUIC(address string) (Listener, error) {
	tlsConf, err := generateServerTLSConfig()
	if err != nil {
		return nil, err
	}
	quicConf := &quic.Config{
		MaxIdleTimeout:  quicMaxIdleTimeout,
		KeepAlivePeriod: quicKeepAlivePeriod,
	}

	ln, err := quic.ListenAddr(address, tlsConf, quicConf)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to listen QUIC")
	}

	corelog.Infof("Transport: QUIC listening on %s", ln.Addr())
	return &quicListener{ln: ln}, nil
}

// Accept 等待下一条入站连接并接受其首个流
func (l *quicListener) Accept(ctx context.Context) (Transport, error) {
	for {
		conn, err := l.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "accept cancelled")
			}
			return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to accept QUIC connection")
		}

		streamCtx, cancel := context.WithTimeout(ctx, quicAcceptStreamTimeout)
		stream, err := conn.AcceptStream(streamCtx)
		cancel()
		if err != nil {
			// 对端连上却不开流，丢弃该连接继续等下一条
			_ = conn.CloseWithError(0, "no stream opened")
			if ctx.Err() != nil {
				return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "accept cancelled")
			}
			corelog.Warnf("Transport: QUIC connection from %s opened no stream: %v", conn.RemoteAddr(), err)
			continue
		}

		corelog.Debugf("Transport: accepted QUIC stream from %s", conn.RemoteAddr())
		return newQUICTransport(conn, stream), nil
	}
}

func (l *quicListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *quicListener) Close() error {
	return l.ln.Close()
}

// generateServerTLSConfig 生成自签名证书的 TLS 配置
//
// 证书仅用于满足 QUIC 的 TLS 要求，客户端跳过验证。
func generateServerTLSConfig() (*tls.Config, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to generate private key")
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to create certificate")
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to parse TLS certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicALPN},
	}, nil
}
