package notify

import (
	"context"
	"sync"
)

const defaultInboxSize = 20

// Inbox keeps the latest notices per user until a client polls for them.
// Older notices are dropped once a user has more than the inbox size.
type Inbox struct {
	mu     sync.Mutex
	size   int
	byUser map[string][]Notice
}

// NewInbox creates an Inbox holding up to size notices per user.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{size: size, byUser: make(map[string][]Notice)}
}

func (in *Inbox) Notify(_ context.Context, n Notice) {
	in.mu.Lock()
	defer in.mu.Unlock()
	queue := append(in.byUser[n.UserID], n)
	if len(queue) > in.size {
		queue = queue[len(queue)-in.size:]
	}
	in.byUser[n.UserID] = queue
}

// Drain returns the user's pending notices, oldest first, and clears them.
func (in *Inbox) Drain(userID string) []Notice {
	in.mu.Lock()
	defer in.mu.Unlock()
	queue := in.byUser[userID]
	delete(in.byUser, userID)
	return queue
}

// Multi fans a notice out to several sinks.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}
