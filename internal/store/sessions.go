// Package store 提供进程内的会话注册表。
// 会话是纯内存对象，宕机即丢失是接受的取舍；注册表只负责
// 按会话码的并发安全存取，会话内部状态由各自的互斥锁保护。
package store

import (
	"sync"

	"dungeon-raid/internal/domain"
)

// SessionStore 是按会话码索引的并发安全注册表。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewSessionStore 创建空的会话注册表。
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

// Put 登记一个会话，码已存在时覆盖。
func (s *SessionStore) Put(session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Code] = session
}

// Get 按会话码查找，返回 (nil, false) 表示不存在。
func (s *SessionStore) Get(code string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	return session, ok
}

// Delete 移除一个会话，码不存在时为空操作。
func (s *SessionStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// Exists 检查会话码是否已被占用。
func (s *SessionStore) Exists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok
}

// Len 返回当前登记的会话数量。
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range 对每个会话调用 fn，fn 返回 false 时提前终止。
// 遍历在注册表快照上进行，fn 内可以安全地调用 Delete。
func (s *SessionStore) Range(fn func(session *domain.Session) bool) {
	s.mu.RLock()
	snapshot := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		snapshot = append(snapshot, session)
	}
	s.mu.RUnlock()

	for _, session := range snapshot {
		if !fn(session) {
			return
		}
	}
}
