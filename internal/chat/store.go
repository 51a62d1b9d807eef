// Package chat implements the client-side conversation state machine: a
// single-writer store of messages, presence, typing and unread state, a
// session loop that serializes inbound events and local actions onto one
// goroutine, and a pure projection of the active conversation.
package chat

import (
	"sort"

	"taskchat/internal/domain"
)

// Store holds the chat state for one authenticated session. It is not
// goroutine-safe: every mutation and read runs on the session loop. All
// entry points are pure state transitions with no I/O.
type Store struct {
	selfID        string
	currentPeerID string

	// messages is append-only in arrival order. Timestamps are display
	// metadata and never reorder entries.
	messages []domain.Message

	// byID maps confirmed message ids to their position in messages.
	byID map[string]int

	// pending maps client correlation ids of optimistic sends to their
	// position, until the server echo reconciles them.
	pending map[string]int

	// byPair indexes message positions by unordered participant pair so
	// the projector never rescans the full history.
	byPair map[string][]int

	online map[string]struct{}
	typing map[string]struct{}
	unread map[string]int
}

// NewStore creates an empty store for the given local user id.
func NewStore(selfID string) *Store {
	return &Store{
		selfID:  selfID,
		byID:    make(map[string]int),
		pending: make(map[string]int),
		byPair:  make(map[string][]int),
		online:  make(map[string]struct{}),
		typing:  make(map[string]struct{}),
		unread:  make(map[string]int),
	}
}

// SelfID returns the local user id the store was created for.
func (s *Store) SelfID() string { return s.selfID }

// CurrentPeer returns the id of the open conversation partner, or "".
func (s *Store) CurrentPeer() string { return s.currentPeerID }

// ApplyInboundMessage materializes a server-delivered message. Exact
// duplicates (known message id) are dropped. An echo carrying the
// correlation id of a local optimistic send reconciles the pending entry
// in place, preserving its arrival position. Otherwise the message is
// appended, and the sender's unread counter is incremented unless the
// sender is the local user or the currently open conversation.
func (s *Store) ApplyInboundMessage(msg domain.Message) bool {
	if msg.ID != "" {
		if _, dup := s.byID[msg.ID]; dup {
			return false
		}
	}

	if msg.ClientID != "" {
		if pos, ok := s.pending[msg.ClientID]; ok {
			msg.Pending = false
			s.messages[pos] = msg
			if msg.ID != "" {
				s.byID[msg.ID] = pos
			}
			delete(s.pending, msg.ClientID)
			return true
		}
	}

	msg.Pending = false
	s.append(msg)

	if msg.SenderID != s.selfID && msg.SenderID != s.currentPeerID {
		s.unread[msg.SenderID]++
	}
	return true
}

// AppendPending records a local optimistic send before the server has
// confirmed it. The message must carry a client correlation id.
func (s *Store) AppendPending(msg domain.Message) {
	msg.Pending = true
	pos := s.append(msg)
	if msg.ClientID != "" {
		s.pending[msg.ClientID] = pos
	}
}

func (s *Store) append(msg domain.Message) int {
	pos := len(s.messages)
	s.messages = append(s.messages, msg)
	if msg.ID != "" {
		s.byID[msg.ID] = pos
	}
	key := PairKey(msg.SenderID, msg.ReceiverID)
	s.byPair[key] = append(s.byPair[key], pos)
	return pos
}

// ApplyReadReceipt flips the read flag on the matching message. Unknown
// ids are a no-op, not an error: receipts can arrive before the message
// they refer to. Applying a receipt twice is indistinguishable from
// applying it once.
func (s *Store) ApplyReadReceipt(messageID string) {
	if pos, ok := s.byID[messageID]; ok {
		s.messages[pos].IsRead = true
	}
}

// ApplyPresence adds or removes a user from the online set.
func (s *Store) ApplyPresence(userID string, isOnline bool) {
	if isOnline {
		s.online[userID] = struct{}{}
	} else {
		delete(s.online, userID)
	}
}

// ApplyTyping adds or removes a user from the typing set.
func (s *Store) ApplyTyping(userID string, isTyping bool) {
	if isTyping {
		s.typing[userID] = struct{}{}
	} else {
		delete(s.typing, userID)
	}
}

// SelectConversation switches the open conversation and zeroes the
// selected peer's unread counter. An empty id closes the conversation.
func (s *Store) SelectConversation(peerID string) {
	s.currentPeerID = peerID
	if peerID != "" {
		s.unread[peerID] = 0
	}
}

// IsOnline reports whether the user is in the online set.
func (s *Store) IsOnline(userID string) bool {
	_, ok := s.online[userID]
	return ok
}

// IsTyping reports whether the user is in the typing set.
func (s *Store) IsTyping(userID string) bool {
	_, ok := s.typing[userID]
	return ok
}

// UnreadCount returns the unread counter for a peer.
func (s *Store) UnreadCount(peerID string) int {
	return s.unread[peerID]
}

// Conversation returns the messages of the open conversation in arrival
// order, using the pair index. Returns nil when no conversation is open.
func (s *Store) Conversation() []domain.Message {
	if s.currentPeerID == "" {
		return nil
	}
	positions := s.byPair[PairKey(s.selfID, s.currentPeerID)]
	out := make([]domain.Message, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.messages[pos])
	}
	return out
}

// State is an immutable snapshot of the store for the view layer.
type State struct {
	CurrentPeerID string
	Messages      []domain.Message
	OnlineUserIDs []string
	TypingUserIDs []string
	UnreadCounts  map[string]int
}

// Snapshot copies the full state. Set members come back sorted so
// snapshots compare deterministically.
func (s *Store) Snapshot() State {
	st := State{
		CurrentPeerID: s.currentPeerID,
		Messages:      append([]domain.Message(nil), s.messages...),
		OnlineUserIDs: sortedKeys(s.online),
		TypingUserIDs: sortedKeys(s.typing),
		UnreadCounts:  make(map[string]int, len(s.unread)),
	}
	for id, n := range s.unread {
		st.UnreadCounts[id] = n
	}
	return st
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
