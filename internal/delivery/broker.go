package delivery

import (
	"sync"

	"tenismatch/internal/domain"
)

// Broker fans out "conversation changed" signals to in-process
// subscribers. Signals carry no payload; receivers re-read the Source, so a
// coalesced or dropped wakeup never loses a message.
type Broker struct {
	mu   sync.Mutex
	subs map[int64]map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]map[chan struct{}]struct{})}
}

// Register returns a wake channel for conversationID and a func that
// unregisters it.
func (b *Broker) Register(conversationID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	set, ok := b.subs[conversationID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[conversationID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[conversationID], ch)
			if len(b.subs[conversationID]) == 0 {
				delete(b.subs, conversationID)
			}
		})
	}
}

// Wake signals every subscriber of conversationID without blocking.
func (b *Broker) Wake(conversationID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[conversationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Publish implements service.Notifier.
func (b *Broker) Publish(m *domain.Message) {
	b.Wake(m.ConversationID)
}

// Subscribers reports how many subscribers conversationID has.
func (b *Broker) Subscribers(conversationID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[conversationID])
}
