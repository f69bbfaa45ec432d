package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound 表示会话不存在或已过期。
var ErrSessionNotFound = errors.New("session not found")

// Store 定义了会话状态的存取接口。
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	state    State
	lastSeen time.Time
}

// MemoryStore 把会话保存在进程内存中，空闲超过 ttl 的会话由 Sweep 清理。
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore 创建一个内存会话存储。ttl 为 0 表示永不过期。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Load 返回会话状态的副本，并刷新最近访问时间。
func (s *MemoryStore) Load(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return State{}, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return Restore(e.state).Snapshot(), nil
}

// Save 保存会话状态的副本。
func (s *MemoryStore) Save(_ context.Context, id string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &memoryEntry{state: Restore(st).Snapshot(), lastSeen: s.now()}
	return nil
}

// Delete 删除一个会话。
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep 清理过期会话，返回清理数量。
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len 返回当前保存的会话数。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e *memoryEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}
