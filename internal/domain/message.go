package domain

import "time"

// MessageKind distinguishes plain text messages from attachments.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
	KindVoice MessageKind = "voice"
)

// Message is a single direct message between two users. Messages are
// immutable after creation except for IsRead, which flips false→true
// exactly once when the receiver acknowledges it.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	IsRead     bool        `json:"isRead"`
	Kind       MessageKind `json:"kind"`

	// AttachmentURL is set for image/file/voice messages.
	AttachmentURL string `json:"attachmentUrl,omitempty"`

	// ClientID is the client-generated correlation id for optimistic
	// sends. The server echoes it back so the local pending entry can be
	// reconciled with the authoritative message.
	ClientID string `json:"clientId,omitempty"`

	// Pending marks a locally appended message that has not been
	// confirmed by the server echo yet. Never serialized.
	Pending bool `json:"-"`
}
