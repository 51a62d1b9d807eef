package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu    sync.Mutex
	calls []struct {
		peer     string
		isTyping bool
	}
}

func (r *typingRecorder) emit(peer string, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		peer     string
		isTyping bool
	}{peer, isTyping})
}

func (r *typingRecorder) snapshot() []struct {
	peer     string
	isTyping bool
} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(r.calls[:0:0], r.calls...)
}

func TestTyping_SingleTrueUntilPause(t *testing.T) {
	rec := &typingRecorder{}
	n := newTypingNotifier(60*time.Millisecond, rec.emit)

	// Keystrokes well inside the timeout must not re-emit.
	for i := 0; i < 5; i++ {
		n.Keystroke("u1")
		time.Sleep(15 * time.Millisecond)
	}
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "u1", calls[0].peer)
	assert.True(t, calls[0].isTyping)

	// A pause past the timeout fires typing:false exactly once.
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	calls = rec.snapshot()
	assert.False(t, calls[1].isTyping)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 2, "expiry must not repeat")

	// The next burst starts a fresh pair.
	n.Keystroke("u1")
	calls = rec.snapshot()
	require.Len(t, calls, 3)
	assert.True(t, calls[2].isTyping)
	n.Cancel(false)
}

func TestTyping_CancelSilent(t *testing.T) {
	rec := &typingRecorder{}
	n := newTypingNotifier(40*time.Millisecond, rec.emit)

	n.Keystroke("u1")
	n.Cancel(false)

	time.Sleep(80 * time.Millisecond)
	calls := rec.snapshot()
	require.Len(t, calls, 1, "no stale typing:false after teardown")
	assert.True(t, calls[0].isTyping)
}

func TestTyping_CancelWithFinalSignal(t *testing.T) {
	rec := &typingRecorder{}
	n := newTypingNotifier(time.Minute, rec.emit)

	n.Keystroke("u1")
	n.Cancel(true)

	calls := rec.snapshot()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].isTyping)
}

func TestTyping_PeerSwitchMidBurst(t *testing.T) {
	rec := &typingRecorder{}
	n := newTypingNotifier(time.Minute, rec.emit)

	n.Keystroke("u1")
	n.Keystroke("u2")
	n.Cancel(false)

	calls := rec.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "u1", calls[0].peer)
	assert.True(t, calls[0].isTyping)
	assert.Equal(t, "u1", calls[1].peer)
	assert.False(t, calls[1].isTyping)
	assert.Equal(t, "u2", calls[2].peer)
	assert.True(t, calls[2].isTyping)
}

func TestTyping_CancelWithoutBurst(t *testing.T) {
	rec := &typingRecorder{}
	n := newTypingNotifier(time.Minute, rec.emit)

	n.Cancel(true)
	assert.Empty(t, rec.snapshot())
}
