package session

import "sync"

// Manager 按用户维护会话状态容器，每个用户一个 Store。
// Store 不是模块级单例：Manager 被显式注入到需要它的服务中。
type Manager struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewManager 创建一个新的 Manager。
func NewManager() *Manager {
	return &Manager{stores: make(map[string]*Store)}
}

// Get 返回指定用户的会话 Store，不存在时创建。
func (m *Manager) Get(userID string) *Store {
	m.mu.RLock()
	store, ok := m.stores[userID]
	m.mu.RUnlock()
	if ok {
		return store
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if store, ok := m.stores[userID]; ok {
		return store
	}
	store = NewStore()
	m.stores[userID] = store
	return store
}
