// Package timeline is the client-side view of one conversation: the
// authoritative messages received so far plus locally pending sends.
package timeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenismatch/internal/domain"
)

// Entry is one rendered row. Pending rows carry the client token and no
// server id.
type Entry struct {
	Message *domain.Message
	Token   string
	Pending bool
}

type pending struct {
	token string
	msg   *domain.Message
}

// Timeline merges messages from any transport, de-duplicated by id and kept
// in (created_at, id) order. It is safe for concurrent use.
type Timeline struct {
	mu        sync.Mutex
	confirmed []*domain.Message
	seen      map[int64]struct{}
	pending   []pending
	now       func() time.Time
}

func New() *Timeline {
	return &Timeline{seen: make(map[int64]struct{}), now: time.Now}
}

// Merge adds the messages not seen before and returns them.
func (t *Timeline) Merge(msgs ...*domain.Message) []*domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.merge(msgs)
}

func (t *Timeline) merge(msgs []*domain.Message) []*domain.Message {
	var added []*domain.Message
	for _, m := range msgs {
		if m == nil || m.ID <= 0 {
			continue
		}
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.seen[m.ID] = struct{}{}
		i := sort.Search(len(t.confirmed), func(i int) bool { return m.Before(t.confirmed[i]) })
		t.confirmed = append(t.confirmed, nil)
		copy(t.confirmed[i+1:], t.confirmed[i:])
		t.confirmed[i] = m
		added = append(added, m)
	}
	return added
}

// AddPending records a local send and returns its client token.
func (t *Timeline) AddPending(conversationID, senderID int64, body string) string {
	token := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, pending{
		token: token,
		msg: &domain.Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Body:           body,
			CreatedAt:      t.now(),
		},
	})
	return token
}

// Confirm replaces the pending entry with the server row. The row is merged
// even when the token is unknown, since it may already have been delivered.
func (t *Timeline) Confirm(token string, m *domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok := t.dropPending(token)
	t.merge([]*domain.Message{m})
	return ok
}

// Fail drops the pending entry of a send that did not go through.
func (t *Timeline) Fail(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropPending(token)
}

func (t *Timeline) dropPending(token string) bool {
	for i, p := range t.pending {
		if p.token == token {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns confirmed messages in order followed by pending sends in
// the order they were made.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		res = append(res, Entry{Message: m})
	}
	for _, p := range t.pending {
		res = append(res, Entry{Message: p.msg, Token: p.token, Pending: true})
	}
	return res
}

// Messages returns the confirmed messages only.
func (t *Timeline) Messages() []*domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Message(nil), t.confirmed...)
}

func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// LastSeenID is the highest confirmed id, the resume point for sync.
func (t *Timeline) LastSeenID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var last int64
	for id := range t.seen {
		if id > last {
			last = id
		}
	}
	return last
}
