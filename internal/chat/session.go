package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"taskchat/internal/domain"
	"taskchat/internal/protocol"
	"taskchat/pkg/logger"
)

// Channel is the session's view of the realtime connection. The
// connection manager owns the handle exclusively; the session only sends
// through it and drains its decoded event stream.
type Channel interface {
	Connected() bool
	Send(event string, payload interface{}) error
	Events() <-chan protocol.ServerEvent
}

// Session is the root of the chat subsystem for one authenticated user.
// It owns the store and serializes every mutation — inbound events, local
// actions, typing expiry — onto a single loop goroutine, so store entry
// points never race. Constructed at login, closed at logout; there is no
// package-level state.
type Session struct {
	self    domain.User
	log     *logger.Logger
	store   *Store
	conn    Channel
	typing  *typingNotifier
	actions chan func()
	done    chan struct{}
	once    sync.Once
}

// NewSession wires a session for the local user over an established
// channel and starts the event loop. typingTimeout bounds the inactivity
// window of the typing indicator.
func NewSession(self domain.User, conn Channel, typingTimeout time.Duration, log *logger.Logger) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Session{
		self:    self,
		log:     log,
		store:   NewStore(self.ID),
		conn:    conn,
		actions: make(chan func(), 64),
		done:    make(chan struct{}),
	}
	s.typing = newTypingNotifier(typingTimeout, s.emitTyping)
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.conn.Events():
			if !ok {
				return
			}
			s.route(ev)
		case fn := <-s.actions:
			fn()
		}
	}
}

// route demultiplexes one inbound event into a store mutation. The event
// set is closed at the protocol boundary; connect_error is consumed by
// the connection manager and only logged if it leaks through.
func (s *Session) route(ev protocol.ServerEvent) {
	switch e := ev.(type) {
	case protocol.NewMessage:
		s.store.ApplyInboundMessage(e.Message)
	case protocol.MessageRead:
		s.store.ApplyReadReceipt(e.MessageID)
	case protocol.PresenceChanged:
		s.store.ApplyPresence(e.UserID, e.Online)
	case protocol.PeerTyping:
		s.store.ApplyTyping(e.UserID, e.IsTyping)
	case protocol.ConnectError:
		s.log.Warnf("server reported connect error: %s", e.Message)
	}
}

// do schedules fn on the loop. Returns false if the session is closed.
func (s *Session) do(fn func()) bool {
	select {
	case s.actions <- fn:
		return true
	case <-s.done:
		return false
	}
}

// SendMessage dispatches a message to the given receiver. It requires a
// live channel: without one the action is dropped and no state changes.
// With one, an optimistic pending copy is appended locally and the server
// echo later confirms it in place.
func (s *Session) SendMessage(receiverID, text string, kind domain.MessageKind, attachmentURL string) {
	s.do(func() {
		if !s.conn.Connected() {
			s.log.Debugf("sendMessage to %s dropped: channel down", receiverID)
			return
		}
		msg := domain.Message{
			ClientID:      uuid.New().String(),
			SenderID:      s.self.ID,
			ReceiverID:    receiverID,
			Text:          text,
			Kind:          kind,
			AttachmentURL: attachmentURL,
			Timestamp:     time.Now(),
		}
		s.store.AppendPending(msg)
		err := s.conn.Send(protocol.EventSendMessage, protocol.SendMessagePayload{
			ClientID:      msg.ClientID,
			ReceiverID:    msg.ReceiverID,
			Text:          msg.Text,
			Kind:          msg.Kind,
			AttachmentURL: msg.AttachmentURL,
		})
		if err != nil {
			s.log.Warnf("sendMessage to %s failed: %v", receiverID, err)
		}
	})
}

// MarkRead asks the server to flip the read flag. Local state is only
// updated through the inbound router when the server broadcasts the
// receipt; dropped silently while disconnected.
func (s *Session) MarkRead(messageID string) {
	s.do(func() {
		if !s.conn.Connected() {
			s.log.Debugf("markAsRead %s dropped: channel down", messageID)
			return
		}
		if err := s.conn.Send(protocol.EventMarkAsRead, protocol.MarkAsReadPayload{MessageID: messageID}); err != nil {
			s.log.Warnf("markAsRead %s failed: %v", messageID, err)
		}
	})
}

// SetTyping dispatches a raw composition signal, subject to the
// live-connection precondition. Most callers want Keystroke instead.
func (s *Session) SetTyping(receiverID string, isTyping bool) {
	s.do(func() {
		if !s.conn.Connected() {
			return
		}
		s.emitTyping(receiverID, isTyping)
	})
}

// Keystroke registers local composition activity for the open
// conversation and drives the debounced typing indicator.
func (s *Session) Keystroke() {
	s.do(func() {
		peer := s.store.CurrentPeer()
		if peer == "" || !s.conn.Connected() {
			return
		}
		s.typing.Keystroke(peer)
	})
}

func (s *Session) emitTyping(receiverID string, isTyping bool) {
	if err := s.conn.Send(protocol.EventTyping, protocol.TypingPayload{ReceiverID: receiverID, IsTyping: isTyping}); err != nil {
		s.log.Debugf("typing signal to %s dropped: %v", receiverID, err)
	}
}

// SelectConversation opens the conversation with the given user (nil
// closes it), clearing the peer's unread badge. An active typing burst
// towards the previous peer is terminated with a final typing:false while
// the channel is up.
func (s *Session) SelectConversation(user *domain.User) {
	s.do(func() {
		var peerID string
		if user != nil {
			peerID = user.ID
		}
		if old := s.store.CurrentPeer(); old != "" && old != peerID {
			s.typing.Cancel(s.conn.Connected())
		}
		s.store.SelectConversation(peerID)
	})
}

// Connected reports whether the realtime channel is live.
func (s *Session) Connected() bool {
	return s.conn.Connected()
}

// Snapshot returns a copy of the chat state. A zero State is returned
// once the session is closed.
func (s *Session) Snapshot() State {
	res := make(chan State, 1)
	if !s.do(func() { res <- s.store.Snapshot() }) {
		return State{}
	}
	select {
	case st := <-res:
		return st
	case <-s.done:
		return State{}
	}
}

// Conversation returns the projected message list of the open
// conversation.
func (s *Session) Conversation() []domain.Message {
	res := make(chan []domain.Message, 1)
	if !s.do(func() { res <- s.store.Conversation() }) {
		return nil
	}
	select {
	case msgs := <-res:
		return msgs
	case <-s.done:
		return nil
	}
}

// Close stops the loop and cancels any pending typing timer without
// emitting a stale typing:false. Idempotent; the channel itself is torn
// down by its owner.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.typing.Cancel(false)
	})
}
