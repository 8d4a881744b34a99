// Package relay 实现消息中继服务器
//
// 服务器在全部启用的协议上并发接受连接。每条连接包一条数据包流，
// 入场报文声明名字后登记进会话注册表；文本消息按模式转发给其它
// 会话（relay）或原样弹回（echo）。注册表有容量上限，超限挤出
// 最久未活跃者；清扫协程定期过期掉超时无心跳的会话。
package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"framewire/internal/config"
	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
	"framewire/internal/core/idgen"
	corelog "framewire/internal/core/log"
	"framewire/internal/core/safe"
	"framewire/internal/relay/message"
	"framewire/internal/stream"
	"framewire/internal/transport"
)

// helloTimeout 入场报文必须在连接建立后这段时间内到达
const helloTimeout = 10 * time.Second

// shutdownTimeout 停机时等待监听器与状态服务释放的上限
const shutdownTimeout = 5 * time.Second

// anonymousName 客户端没报名字时的展示名
const anonymousName = "anonymous"

// namedListener 监听器和它的协议名
type namedListener struct {
	proto string
	ln    transport.Listener
}

// Server 中继服务器
type Server struct {
	cfg      *config.Root
	opts     *stream.Options
	registry *Registry
	status   *StatusServer
	sessions *idgen.UUIDGenerator
	logger   corelog.Logger

	listeners []namedListener
	ready     chan struct{}

	// resources 按注册顺序的反序释放：状态服务先于监听器
	resources *dispose.ResourceManager

	dispose.Dispose
}

// New 根据配置创建服务器，Run 之前不监听
func New(cfg *config.Root, parentCtx context.Context) (*Server, error) {
	opts, err := cfg.Stream.BuildOptions()
	if err != nil {
		return nil, err
	}

	logger := corelog.Default()
	registry, err := NewRegistry(cfg.Server.MaxSessions, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		opts:      opts,
		registry:  registry,
		sessions:  idgen.NewSessionIDGenerator(),
		logger:    logger,
		ready:     make(chan struct{}),
		resources: dispose.NewResourceManager(),
	}
	s.SetCtx(parentCtx, s.onClose)
	return s, nil
}

// Started 在监听器全部就绪后关闭
//
// ListenerAddrs 只应在该通道关闭后调用。
func (s *Server) Started() <-chan struct{} {
	return s.ready
}

// onClose 释放监听器和状态服务，再清空会话
func (s *Server) onClose() error {
	result := s.resources.DisposeWithTimeout(shutdownTimeout)
	s.registry.Purge()
	if result.HasErrors() {
		return result
	}
	return nil
}

// Registry 返回会话注册表
func (s *Server) Registry() *Registry {
	return s.registry
}

// ListenerAddrs 返回各监听器的实际地址，键为协议名
func (s *Server) ListenerAddrs() map[string]string {
	addrs := make(map[string]string, len(s.listeners))
	for _, nl := range s.listeners {
		addrs[nl.proto] = nl.ln.Addr()
	}
	return addrs
}

// StatusAddr 返回状态服务的实际地址，未启用时为空
func (s *Server) StatusAddr() string {
	if s.status == nil {
		return ""
	}
	return s.status.Addr()
}

// Run 运行服务器直到收到 SIGINT/SIGTERM
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(s.Ctx(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunWithContext(ctx)
}

// RunWithContext 运行服务器直到 ctx 取消或某个接受循环出错
func (s *Server) RunWithContext(ctx context.Context) error {
	if err := s.openListeners(); err != nil {
		return err
	}

	if s.cfg.Server.Status.Enabled {
		s.status = NewStatusServer(s.cfg.Server.Status.Listen, s.cfg.Server.Mode, s.registry, s.logger, ctx)
		if err := s.status.Start(); err != nil {
			_ = s.CloseWithError()
			return err
		}
		_ = s.resources.RegisterFunc("status-server", s.status.CloseWithError)
	}
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)
	for _, nl := range s.listeners {
		ln := nl.ln
		g.Go(func() error {
			return s.acceptLoop(gctx, ln)
		})
	}
	g.Go(func() error {
		return s.sweepLoop(gctx)
	})

	err := g.Wait()
	s.logger.Infof("Relay server shutting down, closing %d session(s)", s.registry.Len())
	_ = s.CloseWithError()

	if err != nil && !coreerrors.IsCode(err, coreerrors.CodeCancelled) && ctx.Err() == nil {
		return err
	}
	return nil
}

// openListeners 在全部启用的协议上开始监听
func (s *Server) openListeners() error {
	enabled := s.cfg.Server.Protocols.EnabledListeners()
	if len(enabled) == 0 {
		return coreerrors.New(coreerrors.CodeConfigError, "no protocol listeners enabled")
	}

	for proto, addr := range enabled {
		ln, err := transport.Listen(proto, addr)
		if err != nil {
			_ = s.resources.DisposeAll()
			s.listeners = nil
			return coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "failed to listen %s on %s", proto, addr)
		}
		s.listeners = append(s.listeners, namedListener{proto: proto, ln: ln})
		_ = s.resources.RegisterFunc("listener-"+proto, ln.Close)
		s.logger.Infof("Relay listening on %s://%s (mode %s)", proto, ln.Addr(), s.cfg.Server.Mode)
	}
	return nil
}

// acceptLoop 单个监听器的接受循环
func (s *Server) acceptLoop(ctx context.Context, ln transport.Listener) error {
	for {
		tr, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || coreerrors.Is(err, coreerrors.ErrListenerClosed) {
				return nil
			}
			return coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "accept failed on %s", ln.Addr())
		}
		safe.Go("relay-session", func() {
			s.serve(ctx, tr)
		})
	}
}

// serve 处理一条入站连接的完整生命周期
func (s *Server) serve(ctx context.Context, tr transport.Transport) {
	remote := transport.RemoteAddrString(tr)

	var t transport.Transport = tr
	if rate := s.cfg.Server.WriteRate; rate > 0 {
		throttled, err := transport.NewThrottledPipe(tr, 0, rate, ctx)
		if err != nil {
			s.logger.Errorf("Failed to throttle connection from %s: %v", remote, err)
			_ = tr.Close()
			return
		}
		t = throttled
	}

	ps, err := stream.NewPacketStream(t, s.opts, ctx)
	if err != nil {
		s.logger.Errorf("Failed to wrap connection from %s: %v", remote, err)
		_ = t.Close()
		return
	}

	id, err := s.sessions.Generate()
	if err != nil {
		s.logger.Errorf("Failed to generate session id: %v", err)
		_ = ps.CloseWithError()
		return
	}

	sess := NewSession(id, remote, ps, ctx)
	s.logger.Infof("Session %s connected from %s", id, remote)

	name, err := s.awaitHello(ctx, sess)
	if err != nil {
		s.logger.Warnf("Session %s rejected: %v", id, err)
		_ = sess.CloseWithError()
		return
	}
	sess.SetName(name)
	s.registry.Add(sess)

	peers := len(s.registry.Others(id))
	_ = sess.Send(message.Info(fmt.Sprintf("welcome %s, session %s, %d peer(s) online", name, id, peers)))
	s.broadcast(id, message.Info(name+" joined"))
	s.logger.Infof("Session %s registered as %q", id, name)

	s.loop(ctx, sess)

	_ = sess.CloseWithError()
	s.registry.Remove(id)
	s.broadcast(id, message.Info(name+" left"))

	stats := sess.Meter().Snapshot()
	s.logger.Infof("Session %s (%s) disconnected: %d frames in, %d frames out, %d bytes total",
		id, name, stats.FramesIn, stats.FramesOut, stats.TotalBytes())
}

// awaitHello 等待并校验入场报文，返回展示名
func (s *Server) awaitHello(ctx context.Context, sess *Session) (string, error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	m, err := sess.Recv(helloCtx)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeProtocolError, "no hello received")
	}
	if m.Kind != message.KindHello {
		_ = sess.Send(message.Goodbye("hello expected"))
		return "", coreerrors.Newf(coreerrors.CodeProtocolError, "first message was %s, want hello", m.Kind)
	}
	name := m.From
	if name == "" {
		name = anonymousName
	}
	return name, nil
}

// loop 会话主循环，逐条处理入站报文直到出错或离场
func (s *Server) loop(ctx context.Context, sess *Session) {
	for {
		m, err := sess.Recv(ctx)
		if err != nil {
			if coreerrors.IsCode(err, coreerrors.CodeInvalidPacket) {
				// 帧完好但内容不是合法报文，丢弃继续
				s.logger.Warnf("Session %s sent undecodable frame: %v", sess.ID(), err)
				continue
			}
			if ctx.Err() == nil && !sess.IsClosed() {
				s.logger.Debugf("Session %s read ended: %v", sess.ID(), err)
			}
			return
		}

		s.registry.Touch(sess.ID())

		switch m.Kind {
		case message.KindText:
			s.dispatchText(sess, m.Body)
		case message.KindPing:
			// Recv 已刷新活跃时间
		case message.KindPeers:
			if err := sess.Send(message.PeersReply(s.registry.Names())); err != nil {
				s.logger.Debugf("Session %s peers reply failed: %v", sess.ID(), err)
			}
		case message.KindGoodbye:
			s.logger.Infof("Session %s said goodbye: %s", sess.ID(), m.Body)
			return
		case message.KindHello:
			s.logger.Debugf("Session %s repeated hello ignored", sess.ID())
		default:
			s.logger.Warnf("Session %s sent unexpected %s message", sess.ID(), m.Kind)
		}
	}
}

// dispatchText 按运行模式分发一条文本消息
func (s *Server) dispatchText(from *Session, body string) {
	msg := message.Text(from.Name(), body)
	if s.cfg.Server.Mode == config.ModeEcho {
		if err := from.Send(msg); err != nil {
			s.logger.Debugf("Session %s echo failed: %v", from.ID(), err)
		}
		return
	}
	s.broadcast(from.ID(), msg)
}

// broadcast 把报文发给除 exclude 外的全部会话
func (s *Server) broadcast(exclude string, m *message.Message) {
	for _, peer := range s.registry.Others(exclude) {
		if err := peer.Send(m); err != nil {
			s.logger.Debugf("Broadcast to session %s failed: %v", peer.ID(), err)
		}
	}
}

// sweepLoop 周期性过期空闲超时的会话
func (s *Server) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Server.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

// sweepIdle 关闭全部空闲超时的会话
func (s *Server) sweepIdle() {
	now := time.Now()
	for _, sess := range s.registry.Sessions() {
		if sess.IsClosed() {
			s.registry.Remove(sess.ID())
			continue
		}
		if idle := sess.IdleFor(now); idle > s.cfg.Server.IdleTimeout {
			s.logger.Infof("Session %s (%s) expired after %s idle", sess.ID(), sess.Name(), idle.Round(time.Second))
			_ = sess.Send(message.Goodbye("idle timeout"))
			_ = sess.CloseWithError()
			s.registry.Remove(sess.ID())
			s.broadcast(sess.ID(), message.Info(sess.Name()+" timed out"))
		}
	}
}
