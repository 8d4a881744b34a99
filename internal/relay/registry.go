package relay

import (
	lru "github.com/hashicorp/golang-lru/v2"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/relay/message"
)

// Registry 有上限的会话注册表
//
// 底层是 LRU：超出容量时最久未活跃的会话被挤出并关闭连接，
// 防止空闲连接囤满服务器。每收到一帧要 Touch 一次来刷新位次。
type Registry struct {
	cache  *lru.Cache[string, *Session]
	logger corelog.Logger
}

// NewRegistry 创建容量为 capacity 的注册表
func NewRegistry(capacity int, logger corelog.Logger) (*Registry, error) {
	if capacity <= 0 {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidParam, "registry capacity must be positive, got %d", capacity)
	}
	if logger == nil {
		logger = corelog.Default()
	}

	r := &Registry{logger: logger}
	cache, err := lru.NewWithEvict(capacity, r.onEvict)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "failed to create session cache")
	}
	r.cache = cache
	return r, nil
}

// onEvict 在条目离开缓存时触发，包括容量挤出和主动 Remove
//
// 主动 Remove 的会话此时已关闭，静默放行；仍然存活的要补一个
// 告别帧再关闭，让客户端感知到被挤出。
func (r *Registry) onEvict(id string, s *Session) {
	if s.IsClosed() {
		return
	}
	r.logger.Warnf("Session %s (%s) closed on eviction", id, s.Name())
	_ = s.Send(message.Goodbye("session evicted"))
	_ = s.CloseWithError()
}

// Add 登记会话，容量满时挤出最久未活跃者
func (r *Registry) Add(s *Session) {
	if evicted := r.cache.Add(s.ID(), s); evicted {
		r.logger.Warnf("Registry full, oldest session evicted to admit %s", s.ID())
	}
}

// Touch 把会话标记为最近活跃
func (r *Registry) Touch(id string) {
	r.cache.Get(id)
}

// Get 按 ID 查找会话，同时刷新位次
func (r *Registry) Get(id string) (*Session, bool) {
	return r.cache.Get(id)
}

// Remove 注销会话，返回其是否在表中
//
// 只做注销；调用方负责先关闭会话。
func (r *Registry) Remove(id string) bool {
	return r.cache.Remove(id)
}

// Len 返回当前会话数
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Sessions 返回全部会话，最久未活跃的在前
func (r *Registry) Sessions() []*Session {
	return r.cache.Values()
}

// Others 返回除 exclude 外的全部存活会话
func (r *Registry) Others(exclude string) []*Session {
	all := r.cache.Values()
	others := make([]*Session, 0, len(all))
	for _, s := range all {
		if s.ID() == exclude || s.IsClosed() {
			continue
		}
		others = append(others, s)
	}
	return others
}

// Names 返回已入场会话的名字，用于在线名单
func (r *Registry) Names() []string {
	all := r.cache.Values()
	names := make([]string, 0, len(all))
	for _, s := range all {
		if s.IsClosed() {
			continue
		}
		if name := s.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Purge 关闭并清空全部会话
func (r *Registry) Purge() {
	for _, s := range r.cache.Values() {
		_ = s.CloseWithError()
	}
	r.cache.Purge()
}
