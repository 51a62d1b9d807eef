package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"taskchat/internal/domain"
	"taskchat/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSocket authenticates the handshake, upgrades it and serves the
// realtime event vocabulary until the connection drops.
func (s *Server) handleSocket(c *gin.Context) {
	claims, err := s.parseToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID := claims.Subject
	if _, ok := s.lookupUser(userID); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newWSClient(conn, userID)
	cameOnline := s.hub.register(client)
	go client.writeLoop()

	// Sync current presence to the newcomer, then announce them.
	for _, id := range s.hub.onlineUsers() {
		if id != userID {
			client.trySend(mustEncode(protocol.EventUserOnline, protocol.PresencePayload{UserID: id}))
		}
	}
	if cameOnline {
		s.hub.broadcastExcept(userID, mustEncode(protocol.EventUserOnline, protocol.PresencePayload{UserID: userID}))
	}

	s.readLoop(client)

	if s.hub.unregister(client) {
		s.recordLastSeen(userID)
		s.hub.broadcastExcept(userID, mustEncode(protocol.EventUserOffline, protocol.PresencePayload{UserID: userID}))
	}
}

func (s *Server) readLoop(client *wsClient) {
	conn := client.conn
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warnf("ws: malformed frame from %s: %v", client.userID, err)
			continue
		}

		switch env.Event {
		case protocol.EventSendMessage:
			var p protocol.SendMessagePayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				s.deliverMessage(client.userID, p)
			}
		case protocol.EventMarkAsRead:
			var p protocol.MarkAsReadPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				s.markRead(client.userID, p.MessageID)
			}
		case protocol.EventTyping:
			var p protocol.TypingPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				s.hub.sendToUser(p.ReceiverID, mustEncode(protocol.EventTyping, protocol.PeerTypingPayload{
					UserID:   client.userID,
					IsTyping: p.IsTyping,
				}))
			}
		default:
			s.log.Warnf("ws: unknown event %q from %s", env.Event, client.userID)
		}
	}
}

// deliverMessage persists the message and broadcasts the authoritative
// copy to both parties, echoing the sender's correlation id.
func (s *Server) deliverMessage(senderID string, p protocol.SendMessagePayload) {
	if p.ReceiverID == "" {
		return
	}
	kind := p.Kind
	if kind == "" {
		kind = domain.KindText
	}
	msg := &domain.Message{
		ID:            uuid.New().String(),
		SenderID:      senderID,
		ReceiverID:    p.ReceiverID,
		Text:          p.Text,
		Timestamp:     time.Now(),
		Kind:          kind,
		AttachmentURL: p.AttachmentURL,
		ClientID:      p.ClientID,
	}

	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()

	frame := mustEncode(protocol.EventNewMessage, msg)
	s.hub.sendToUser(msg.ReceiverID, frame)
	if msg.ReceiverID != senderID {
		s.hub.sendToUser(senderID, frame)
	}
}

// markRead flips the read flag once and notifies the original sender.
func (s *Server) markRead(readerID, messageID string) {
	s.mu.Lock()
	msg, ok := s.messages[messageID]
	if !ok || msg.ReceiverID != readerID || msg.IsRead {
		s.mu.Unlock()
		return
	}
	msg.IsRead = true
	senderID := msg.SenderID
	s.mu.Unlock()

	s.hub.sendToUser(senderID, mustEncode(protocol.EventMessageRead, protocol.MessageReadPayload{MessageID: messageID}))
}

func (s *Server) recordLastSeen(userID string) {
	now := time.Now()
	s.mu.Lock()
	if acc, ok := s.users[userID]; ok {
		acc.user.LastSeenAt = &now
	}
	s.mu.Unlock()
}

// mustEncode panics on marshal failure, which can only happen for a
// programming error in the payload types.
func mustEncode(event string, payload interface{}) []byte {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		panic(err)
	}
	return data
}
