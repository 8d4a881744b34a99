//go:build !no_websocket

// WebSocket 传输层实现。帧字节装在二进制消息里，
// 使用 -tags no_websocket 可以排除此协议以减小二进制体积。
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
)

func init() {
	RegisterProtocol("websocket", 40, DialWebSocket, ListenWebSocket) // 优先级 40（最低）
}

const (
	// DefaultWebSocketPath 默认升级路径
	DefaultWebSocketPath = "/_framewire"

	wsHandshakeTimeout = 20 * time.Second
	wsBufferSize       = 4096
	wsCloseGrace       = time.Second

	// wsAcceptBacklog 升级完成、尚未被 Accept 取走的连接数上限
	wsAcceptBacklog = 16
)

// wsConn WebSocket 传输
//
// 一个读泵协程把入站二进制消息摊平进字节队列，消息边界因此
// 消失，帧边界完全交给上层的帧头。就绪探测和等待都落在队列上，
// 不触碰 websocket 连接本身。
type wsConn struct {
	conn      *websocket.Conn
	inbound   *bufferQueue
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:    conn,
		inbound: newBufferQueue(),
	}
	go c.readPump()
	return c
}

// readPump 持续收取消息，出错即关闭队列
func (c *wsConn) readPump() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				corelog.Debugf("Transport: websocket read pump stopped: %v", err)
			}
			c.inbound.close()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		if _, err := c.inbound.write(data); err != nil {
			return
		}
	}
}

func (c *wsConn) Read(p []byte) (int, error) {
	return c.inbound.read(p)
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "websocket write failed")
	}
	return len(p), nil
}

// DataAvailable 非阻塞探测是否可读
func (c *wsConn) DataAvailable() bool {
	return c.inbound.dataAvailable()
}

// WaitReadable 阻塞等待可读
func (c *wsConn) WaitReadable(ctx context.Context) error {
	return c.inbound.waitReadable(ctx)
}

// Close 发送关闭帧并断开连接
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsCloseGrace))
		err = c.conn.Close()
		c.inbound.close()
	})
	return err
}

// LocalAddr 本端地址
func (c *wsConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr 对端地址
func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// NormalizeWebSocketURL 规范化 WebSocket 地址，支持多种写法：
//   - https://relay.example.com/path -> wss://relay.example.com/path
//   - http://relay.example.com/path  -> ws://relay.example.com/path
//   - relay.example.com:9000         -> ws://relay.example.com:9000/_framewire
//   - relay.example.com:9000/custom  -> ws://relay.example.com:9000/custom
func NormalizeWebSocketURL(address string) (string, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") ||
		strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		parsedURL, err := url.Parse(address)
		if err != nil {
			return "", coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "invalid websocket URL")
		}

		scheme := strings.ToLower(parsedURL.Scheme)
		if scheme == "http" {
			scheme = "ws"
		} else if scheme == "https" {
			scheme = "wss"
		}

		path := parsedURL.Path
		if path == "" {
			path = DefaultWebSocketPath
		}

		wsURL := fmt.Sprintf("%s://%s%s", scheme, parsedURL.Host, path)
		if parsedURL.RawQuery != "" {
			wsURL += "?" + parsedURL.RawQuery
		}
		return wsURL, nil
	}

	if strings.Contains(address, "/") {
		return "ws://" + address, nil
	}
	return "ws://" + address + DefaultWebSocketPath, nil
}

// DialWebSocket 建立 WebSocket 连接
func DialWebSocket(ctx context.Context, address string) (Transport, error) {
	wsURL, err := NormalizeWebSocketURL(address)
	if err != nil {
		return nil, err
	}
	corelog.Debugf("Transport: dialing WebSocket to %s", wsURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		ReadBufferSize:   wsBufferSize,
		WriteBufferSize:  wsBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to dial websocket")
	}

	corelog.Infof("Transport: WebSocket connection established to %s", wsURL)
	return newWSConn(conn), nil
}

// wsListener WebSocket 监听器
//
// 内嵌 HTTP 服务负责升级，升级完成的连接进入待取队列。
type wsListener struct {
	server   *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader
	accepted chan Transport
	closed   chan struct{}
	once     sync.Once
}

// ListenWebSocket 启动 WebSocket 监听
//
// address 可以带路径（host:port/path），缺省使用 DefaultWebSocketPath。
func ListenWebSocket(address string) (Listener, error) {
	hostPort := address
	path := DefaultWebSocketPath
	if idx := strings.Index(address, "/"); idx >= 0 {
		hostPort = address[:idx]
		path = address[idx:]
	}

	ln, err := net.Listen("tcp", hostPort)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "failed to listen websocket")
	}

	l := &wsListener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			// 中继自身不做同源限制，接入控制交给部署层
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		accepted: make(chan Transport, wsAcceptBacklog),
		closed:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{Handler: mux}

	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			select {
			case <-l.closed:
			default:
				corelog.Errorf("Transport: websocket server error: %v", err)
			}
		}
	}()

	corelog.Infof("Transport: WebSocket listening on %s%s", ln.Addr(), path)
	return l, nil
}

// handleUpgrade 把 HTTP 请求升级成 WebSocket 传输
func (l *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		corelog.Warnf("Transport: websocket upgrade failed: %v", err)
		return
	}

	t := newWSConn(conn)
	select {
	case l.accepted <- t:
	case <-l.closed:
		_ = t.Close()
	}
}

// Accept 等待下一条升级完成的连接
func (l *wsListener) Accept(ctx context.Context) (Transport, error) {
	select {
	case t := <-l.accepted:
		corelog.Debugf("Transport: accepted WebSocket connection from %s", RemoteAddrString(t))
		return t, nil
	case <-l.closed:
		return nil, coreerrors.ErrListenerClosed
	case <-ctx.Done():
		return nil, coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "accept cancelled")
	}
}

func (l *wsListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *wsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.server.Close()
	})
	return err
}
