// Package protocol defines the event vocabulary exchanged over the
// realtime channel. Every frame is a JSON envelope carrying an event name
// and a raw payload that is decoded into a concrete struct once the name
// is known. Inbound frames decode into a closed set of ServerEvent
// variants; anything outside that set is an error for the caller to log
// and drop.
package protocol

import (
	"encoding/json"
	"fmt"

	"taskchat/internal/domain"
	taskchat_errors "taskchat/pkg/errors"
)

// Client -> server event names.
const (
	EventSendMessage = "sendMessage"
	EventMarkAsRead  = "markAsRead"
	EventTyping      = "typing"
)

// Server -> client event names.
const (
	EventNewMessage   = "newMessage"
	EventMessageRead  = "messageRead"
	EventUserOnline   = "userOnline"
	EventUserOffline  = "userOffline"
	EventConnectError = "connect_error"
	// EventTyping is shared: the outbound payload carries the receiver,
	// the inbound payload carries the peer who is typing.
)

// Envelope is the wire frame: event name plus deferred payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendMessagePayload asks the server to persist and broadcast a message.
// ClientID correlates the server echo with the local optimistic entry.
type SendMessagePayload struct {
	ClientID      string             `json:"clientId"`
	ReceiverID    string             `json:"receiverId"`
	Text          string             `json:"text"`
	Kind          domain.MessageKind `json:"kind"`
	AttachmentURL string             `json:"attachmentUrl,omitempty"`
}

// MarkAsReadPayload asks the server to flip the read flag and notify the
// original sender.
type MarkAsReadPayload struct {
	MessageID string `json:"messageId"`
}

// TypingPayload is the outbound composition signal.
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// ServerEvent is the closed union of inbound events.
type ServerEvent interface {
	serverEvent()
}

// NewMessage is the authoritative message creation, delivered to both
// parties of the conversation.
type NewMessage struct {
	Message domain.Message
}

// MessageRead is the read-receipt broadcast to the original sender.
type MessageRead struct {
	MessageID string
}

// PresenceChanged reports a peer going online or offline.
type PresenceChanged struct {
	UserID string
	Online bool
}

// PeerTyping relays a peer's composition state.
type PeerTyping struct {
	UserID   string
	IsTyping bool
}

// ConnectError reports an authentication or transport failure raised by
// the server on the live channel.
type ConnectError struct {
	Message string
}

func (NewMessage) serverEvent()      {}
func (MessageRead) serverEvent()     {}
func (PresenceChanged) serverEvent() {}
func (PeerTyping) serverEvent()      {}
func (ConnectError) serverEvent()    {}

// Server-side payload shapes, shared with the reference server so both
// ends agree on the wire format.

// MessageReadPayload is the read-receipt broadcast.
type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

// PresencePayload carries the subject of a userOnline/userOffline event.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// PeerTypingPayload is the inbound composition signal.
type PeerTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ConnectErrorPayload reports a failure on the live channel.
type ConnectErrorPayload struct {
	Message string `json:"message"`
}

// ParseServerEvent decodes an inbound frame into one of the ServerEvent
// variants. Unknown event names return ErrUnknownEvent.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("protocol: missing event name: %w", taskchat_errors.ErrInvalidInput)
	}

	switch env.Event {
	case EventNewMessage:
		var msg domain.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Event, err)
		}
		return NewMessage{Message: msg}, nil
	case EventMessageRead:
		var p MessageReadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Event, err)
		}
		return MessageRead{MessageID: p.MessageID}, nil
	case EventUserOnline, EventUserOffline:
		var p PresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Event, err)
		}
		return PresenceChanged{UserID: p.UserID, Online: env.Event == EventUserOnline}, nil
	case EventTyping:
		var p PeerTypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Event, err)
		}
		return PeerTyping{UserID: p.UserID, IsTyping: p.IsTyping}, nil
	case EventConnectError:
		var p ConnectErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Event, err)
		}
		return ConnectError{Message: p.Message}, nil
	default:
		return nil, fmt.Errorf("protocol: event %q: %w", env.Event, taskchat_errors.ErrUnknownEvent)
	}
}

// Encode wraps a payload in the wire envelope.
func Encode(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
	}
	out, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s envelope: %w", event, err)
	}
	return out, nil
}
