package services

import (
	"sync"
	"time"
)

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	ID       int
	Kind     NoticeKind
	Message  string
	PostedAt time.Time
}

// Notices holds transient user-facing messages. Each one disappears after ttl
// unless dismissed first.
type Notices struct {
	mu     sync.Mutex
	ttl    time.Duration
	nextID int
	items  []Notice
	timers map[int]*time.Timer

	// OnPost, when set, is called for every new notice outside the lock.
	OnPost func(Notice)
}

func NewNotices(ttl time.Duration) *Notices {
	return &Notices{
		ttl:    ttl,
		timers: make(map[int]*time.Timer),
	}
}

func (n *Notices) Info(msg string) Notice    { return n.Post(NoticeInfo, msg) }
func (n *Notices) Success(msg string) Notice { return n.Post(NoticeSuccess, msg) }
func (n *Notices) Error(msg string) Notice   { return n.Post(NoticeError, msg) }

func (n *Notices) Post(kind NoticeKind, msg string) Notice {
	if n == nil {
		return Notice{Kind: kind, Message: msg}
	}

	n.mu.Lock()
	n.nextID++
	notice := Notice{ID: n.nextID, Kind: kind, Message: msg, PostedAt: time.Now()}
	n.items = append(n.items, notice)
	if n.ttl > 0 {
		id := notice.ID
		n.timers[id] = time.AfterFunc(n.ttl, func() { n.Dismiss(id) })
	}
	onPost := n.OnPost
	n.mu.Unlock()

	if onPost != nil {
		onPost(notice)
	}
	return notice
}

func (n *Notices) Dismiss(id int) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return
		}
	}
}

func (n *Notices) Active() []Notice {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

// Latest returns the most recent notice still showing.
func (n *Notices) Latest() (Notice, bool) {
	active := n.Active()
	if len(active) == 0 {
		return Notice{}, false
	}
	return active[len(active)-1], true
}
