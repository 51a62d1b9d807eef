package chat

import (
	"sync"
	"time"
)

// typingNotifier debounces local keystrokes into at most one outstanding
// typing:true / typing:false pair per composition burst. The first
// keystroke emits typing:true once; every keystroke restarts the single
// inactivity timer; expiry emits typing:false. The timer callback runs on
// its own goroutine, so the notifier carries its own lock rather than
// relying on the session loop.
type typingNotifier struct {
	mu      sync.Mutex
	emit    func(receiverID string, isTyping bool)
	timeout time.Duration
	timer   *time.Timer
	active  bool
	peerID  string
}

func newTypingNotifier(timeout time.Duration, emit func(receiverID string, isTyping bool)) *typingNotifier {
	return &typingNotifier{emit: emit, timeout: timeout}
}

// Keystroke registers composition activity towards the given peer.
func (t *typingNotifier) Keystroke(receiverID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active && t.peerID != receiverID {
		// Composition moved to another conversation mid-burst.
		t.stopLocked()
		t.emit(t.peerID, false)
		t.active = false
	}

	if !t.active {
		t.active = true
		t.peerID = receiverID
		t.emit(receiverID, true)
	}

	t.stopLocked()
	t.timer = time.AfterFunc(t.timeout, t.expire)
}

func (t *typingNotifier) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.active = false
	t.emit(t.peerID, false)
}

// Cancel stops any pending timer. With emitFinal set, an active burst is
// terminated with an immediate typing:false towards the peer; otherwise
// the burst is dropped silently so no stale signal is sent after the
// channel is gone.
func (t *typingNotifier) Cancel(emitFinal bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	if t.active && emitFinal {
		t.emit(t.peerID, false)
	}
	t.active = false
}

func (t *typingNotifier) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
