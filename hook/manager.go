package hook

import (
	"sync"
	"sync/atomic"
)

// Manager holds the registered hooks and dispatches lifecycle events to
// whichever of them declared interest via Provides. The hook slice itself
// is copy-on-write: readers (the dispatch methods, called on every packet)
// never take a lock, only registration does.
type Manager struct {
	mu       sync.Mutex
	hooksPtr atomic.Pointer[[]Hook]
	index    map[string]int
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	m := &Manager{index: make(map[string]int)}
	hooks := make([]Hook, 0)
	m.hooksPtr.Store(&hooks)
	return m
}

// Add registers a hook. Returns an error if its ID is empty or already taken.
func (m *Manager) Add(h Hook) error {
	if h == nil {
		return ErrEmptyHookID
	}

	id := h.ID()
	if id == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[id]; exists {
		return ErrHookAlreadyExists
	}

	oldHooks := *m.hooksPtr.Load()
	newHooks := make([]Hook, len(oldHooks)+1)
	copy(newHooks, oldHooks)
	newHooks[len(oldHooks)] = h

	m.index[id] = len(oldHooks)
	m.hooksPtr.Store(&newHooks)

	return nil
}

// Remove unregisters a hook by ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return ErrHookNotFound
	}

	oldHooks := *m.hooksPtr.Load()
	newHooks := make([]Hook, len(oldHooks)-1)
	copy(newHooks[:idx], oldHooks[:idx])
	copy(newHooks[idx:], oldHooks[idx+1:])

	delete(m.index, id)
	for i := idx; i < len(newHooks); i++ {
		m.index[newHooks[i].ID()] = i
	}

	m.hooksPtr.Store(&newHooks)
	return nil
}

// Get retrieves a registered hook by ID.
func (m *Manager) Get(id string) (Hook, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return nil, false
	}
	return (*m.hooksPtr.Load())[idx], true
}

// Count returns the number of registered hooks.
func (m *Manager) Count() int {
	return len(*m.hooksPtr.Load())
}

// Clear stops and removes every registered hook.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range *m.hooksPtr.Load() {
		_ = h.Stop()
	}

	empty := make([]Hook, 0)
	m.hooksPtr.Store(&empty)
	m.index = make(map[string]int)
}

// OnConnect runs every OnConnect-providing hook in registration order,
// stopping at the first error so a hook can reject the connection.
func (m *Manager) OnConnect(client *Client) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnect) {
			if err := h.OnConnect(client); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnDisconnect notifies every OnDisconnect-providing hook. Disconnection
// cannot be vetoed, so these run best-effort and errors are not surfaced.
func (m *Manager) OnDisconnect(client *Client, cause error) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnDisconnect) {
			h.OnDisconnect(client, cause)
		}
	}
}

// OnPublish runs every OnPublish-providing hook, stopping at the first
// error so a hook (e.g. a rate limiter) can reject the publish.
func (m *Manager) OnPublish(client *Client, p *PublishPacket) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPublish) {
			if err := h.OnPublish(client, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnSubscribe runs every OnSubscribe-providing hook, stopping at the first
// error so a hook can reject the subscription.
func (m *Manager) OnSubscribe(client *Client, sub *Subscription) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnSubscribe) {
			if err := h.OnSubscribe(client, sub); err != nil {
				return err
			}
		}
	}
	return nil
}
