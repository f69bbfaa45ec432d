package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrSessionBusy 表示该会话已有一个请求正在进行。
var ErrSessionBusy = errors.New("session has a request in flight")

// sweeper 由支持主动清理的 Store 实现（MemoryStore）。
type sweeper interface {
	Sweep() int
}

// entry 串行化同一会话的状态读写，并标记是否有流式请求在进行。
type entry struct {
	mu       sync.Mutex
	busy     atomic.Bool
	lastUsed atomic.Int64
}

// Manager 为每个浏览器会话维护一个独立的 History。
// 不同会话之间没有共享状态；同一会话同一时间只允许一个流式请求。
type Manager struct {
	store        Store
	systemPrompt string
	ttl          time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager 创建会话管理器。
func NewManager(store Store, systemPrompt string, ttl time.Duration) *Manager {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Manager{
		store:        store,
		systemPrompt: systemPrompt,
		ttl:          ttl,
		entries:      make(map[string]*entry),
	}
}

// Create 新建一个会话并返回其 ID。
func (m *Manager) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, NewHistory(m.systemPrompt).Snapshot()); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// View 在会话锁内读取 History，不会写回。流式请求进行中也可以读取。
func (m *Manager) View(ctx context.Context, id string, fn func(*History) error) error {
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	return fn(Restore(st))
}

// Update 在会话锁内修改 History 并写回。有流式请求进行时返回 ErrSessionBusy。
func (m *Manager) Update(ctx context.Context, id string, fn func(*History) error) error {
	e := m.entry(id)
	if e.busy.Load() {
		return ErrSessionBusy
	}
	return m.update(ctx, id, e, fn)
}

// Begin 占用会话，开始一个流式请求。调用方必须调用 Request.End。
func (m *Manager) Begin(ctx context.Context, id string) (*Request, error) {
	e := m.entry(id)
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrSessionBusy
	}
	if err := m.View(ctx, id, func(*History) error { return nil }); err != nil {
		e.busy.Store(false)
		return nil, err
	}
	return &Request{m: m, id: id, e: e}, nil
}

// Exists 判断会话是否存在。
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	err := m.View(ctx, id, func(*History) error { return nil })
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Run 定期清理过期会话，直到 ctx 结束。
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep 清理过期会话及其锁，返回清理的会话数。
func (m *Manager) Sweep() int {
	n := 0
	if s, ok := m.store.(sweeper); ok {
		n = s.Sweep()
	}
	if m.ttl <= 0 {
		return n
	}
	cutoff := time.Now().Add(-m.ttl).UnixNano()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if !e.busy.Load() && e.lastUsed.Load() < cutoff {
			delete(m.entries, id)
		}
	}
	return n
}

func (m *Manager) update(ctx context.Context, id string, e *entry, fn func(*History) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	h := Restore(st)
	if err := fn(h); err != nil {
		return err
	}
	return m.store.Save(ctx, id, h.Snapshot())
}

func (m *Manager) entry(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	e.lastUsed.Store(time.Now().UnixNano())
	return e
}

// Request 代表一个占用中的流式请求。
type Request struct {
	m    *Manager
	id   string
	e    *entry
	once sync.Once
}

// Update 在请求期间修改 History。
func (r *Request) Update(ctx context.Context, fn func(*History) error) error {
	return r.m.update(ctx, r.id, r.e, fn)
}

// End 释放会话占用，可重复调用。
func (r *Request) End() {
	r.once.Do(func() { r.e.busy.Store(false) })
}
