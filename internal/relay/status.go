package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"framewire/internal/core/dispose"
	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/core/safe"
	"framewire/internal/stream"
)

// StatusServer 只读状态查询 HTTP 服务
//
// GET /healthz      存活探测
// GET /api/status   运行指标和会话列表
type StatusServer struct {
	registry  *Registry
	mode      string
	startedAt time.Time

	server *http.Server
	ln     net.Listener
	logger corelog.Logger

	dispose.Dispose
}

// NewStatusServer 创建状态服务，Start 之前不监听
func NewStatusServer(listen, mode string, registry *Registry, logger corelog.Logger, parentCtx context.Context) *StatusServer {
	if logger == nil {
		logger = corelog.Default()
	}
	s := &StatusServer{
		registry:  registry,
		mode:      mode,
		startedAt: time.Now(),
		logger:    logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	router.HandleFunc("/api/status", s.handleStatus).Methods("GET")

	s.server = &http.Server{
		Addr:         listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.SetCtx(parentCtx, s.onClose)
	return s
}

// Start 开始监听并在后台服务
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "failed to listen on %s", s.server.Addr)
	}
	s.ln = ln

	s.logger.Infof("Status endpoint listening on http://%s", ln.Addr().String())
	safe.Go("status-http", func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Status server error: %v", err)
		}
	})
	return nil
}

// Addr 返回实际监听地址，Start 之前为空
func (s *StatusServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *StatusServer) onClose() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// ============================================================================
// 处理器
// ============================================================================

// sessionStatus 单个会话的对外视图
type sessionStatus struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Remote      string              `json:"remote"`
	ConnectedAt time.Time           `json:"connected_at"`
	IdleSeconds float64             `json:"idle_seconds"`
	Traffic     stream.TrafficStats `json:"traffic"`
}

// statusReport GET /api/status 的响应体
type statusReport struct {
	Mode          string          `json:"mode"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	SessionCount  int             `json:"session_count"`
	Goroutines    safe.Stats      `json:"goroutines"`
	Sessions      []sessionStatus `json:"sessions"`
}

func (s *StatusServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	sessions := s.registry.Sessions()

	report := statusReport{
		Mode:          s.mode,
		UptimeSeconds: now.Sub(s.startedAt).Seconds(),
		SessionCount:  len(sessions),
		Goroutines:    safe.GetStats(),
		Sessions:      make([]sessionStatus, 0, len(sessions)),
	}
	for _, sess := range sessions {
		report.Sessions = append(report.Sessions, sessionStatus{
			ID:          sess.ID(),
			Name:        sess.Name(),
			Remote:      sess.Remote(),
			ConnectedAt: sess.CreatedAt(),
			IdleSeconds: sess.IdleFor(now).Seconds(),
			Traffic:     sess.Meter().Snapshot(),
		})
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *StatusServer) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debugf("Status response encode failed: %v", err)
	}
}
