package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyerfyer/pitch-analyst/internal/cache"
)

// 注册表中的键
const (
	KeyCompanyName = "company_name"
	KeyCorpusName  = "corpus_name"
)

// DefaultSession 请求未携带会话标识时使用
const DefaultSession = "default"

// ErrNotRegistered 注册表中没有对应的键
var ErrNotRegistered = errors.New("No RAG corpus registered for key")

// Registry 语料注册表，按会话隔离，持久化在缓存中
// 条目不过期，只会被同一会话的后续上传覆盖
type Registry struct {
	cache cache.Cache
	mu    sync.Mutex
}

// NewRegistry 创建注册表
func NewRegistry(c cache.Cache) *Registry {
	return &Registry{cache: c}
}

// Scope 返回某个会话的注册表视图
func (r *Registry) Scope(session string) *Scope {
	if session == "" {
		session = DefaultSession
	}
	return &Scope{registry: r, session: session}
}

func registryKey(session string) string {
	return cache.GenerateCacheKey("registry", session)
}

// Scope 单个会话的注册表
type Scope struct {
	registry *Registry
	session  string
}

// Session 返回会话标识
func (s *Scope) Session() string {
	return s.session
}

// Set 写入一个键值
func (s *Scope) Set(ctx context.Context, key, value string) error {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	entries[key] = value
	if err := cache.SetJSON(ctx, r.cache, registryKey(s.session), entries, cache.NoExpiration); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// Get 读取一个键值，缺失时返回 ErrNotRegistered
func (s *Scope) Get(ctx context.Context, key string) (string, error) {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	value, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	return value, nil
}

// Entries 返回会话下全部键值的副本
func (s *Scope) Entries(ctx context.Context) (map[string]string, error) {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Scope) loadLocked(ctx context.Context) (map[string]string, error) {
	entries := make(map[string]string)
	if _, err := cache.GetJSON(ctx, s.registry.cache, registryKey(s.session), &entries); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return entries, nil
}

type scopeKey struct{}

// WithScope 把会话注册表放入上下文
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom 从上下文取出会话注册表
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}
