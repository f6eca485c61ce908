package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Tracker. Entries expire lazily on read.
type Memory struct {
	mu        sync.Mutex
	online    map[int64]time.Time
	typing    map[int64]map[int64]time.Time
	onlineTTL time.Duration
	typingTTL time.Duration
	now       func() time.Time
}

var _ Tracker = (*Memory)(nil)

func NewMemory(onlineTTL, typingTTL time.Duration) *Memory {
	return NewMemoryWithClock(onlineTTL, typingTTL, time.Now)
}

func NewMemoryWithClock(onlineTTL, typingTTL time.Duration, now func() time.Time) *Memory {
	if onlineTTL <= 0 {
		onlineTTL = DefaultOnlineTTL
	}
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	return &Memory{
		online:    make(map[int64]time.Time),
		typing:    make(map[int64]map[int64]time.Time),
		onlineTTL: onlineTTL,
		typingTTL: typingTTL,
		now:       now,
	}
}

func (m *Memory) Touch(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[userID] = m.now().Add(m.onlineTTL)
	return nil
}

func (m *Memory) Leave(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, userID)
	return nil
}

func (m *Memory) SetTyping(_ context.Context, conversationID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.typing[conversationID]
	if !ok {
		set = make(map[int64]time.Time)
		m.typing[conversationID] = set
	}
	set[userID] = m.now().Add(m.typingTTL)
	return nil
}

func (m *Memory) Online(_ context.Context, userIDs []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	res := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		exp, ok := m.online[id]
		if ok && !now.Before(exp) {
			delete(m.online, id)
			ok = false
		}
		res[id] = ok
	}
	return res, nil
}

func (m *Memory) Typing(_ context.Context, conversationID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	ids := []int64{}
	for id, exp := range m.typing[conversationID] {
		if !now.Before(exp) {
			delete(m.typing[conversationID], id)
			continue
		}
		ids = append(ids, id)
	}
	if len(m.typing[conversationID]) == 0 {
		delete(m.typing, conversationID)
	}
	sortIDs(ids)
	return ids, nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
