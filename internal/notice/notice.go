// Package notice holds the transient banners of a console session and the
// one-shot navigation messages that feed them.
package notice

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-console/internal/models"
)

// DefaultTTL is how long a banner stays up without further action.
const DefaultTTL = 5 * time.Second

// Board shows at most one notice at a time and clears it after its TTL.
type Board struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *models.Notice
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// NewBoard creates a board whose notices expire after ttl.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{ttl: ttl}
}

// Show replaces the current notice immediately and re-arms the expiry timer.
func (b *Board) Show(text string, kind models.NoticeKind) models.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	n := models.Notice{Text: text, Kind: kind, ShownAt: now, ExpiresAt: now.Add(b.ttl)}
	if b.closed {
		return n
	}
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.current = &n
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
	return n
}

// Current returns the visible notice, if any.
func (b *Board) Current() (models.Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return models.Notice{}, false
	}
	return *b.current, true
}

// Clear removes the notice without waiting for the timer.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.gen++
	b.current = nil
}

// Close stops any pending timer. The board ignores Show calls afterwards.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.current = nil
	b.closed = true
}

// ShowNavigation consumes the pending navigation message, if any, and shows it
// in place of whatever notice is currently up.
func (b *Board) ShowNavigation(f *Flash) (models.Notice, bool) {
	msg, ok := f.Consume()
	if !ok {
		return models.Notice{}, false
	}
	return b.Show(msg.Message, msg.Kind()), true
}

func (b *Board) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// a newer Show or Clear already owns the board
	if gen != b.gen {
		return
	}
	b.current = nil
	b.timer = nil
}

func (b *Board) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Flash is the navigation-state mailbox. A pushed message is delivered once.
type Flash struct {
	mu  sync.Mutex
	msg *models.NavigationMessage
}

// Push stores msg, replacing an undelivered one.
func (f *Flash) Push(msg models.NavigationMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msg = &msg
}

// Consume returns the pending message and clears it so it is never replayed.
func (f *Flash) Consume() (models.NavigationMessage, bool) {
	if f == nil {
		return models.NavigationMessage{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msg == nil {
		return models.NavigationMessage{}, false
	}
	msg := *f.msg
	f.msg = nil
	return msg, true
}
