package chat

import (
	"strings"

	"taskchat/internal/domain"
)

// PairKey returns a canonical key for the unordered pair of participants
// of a direct message.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Project derives the active conversation from a state snapshot: the
// messages whose unordered {sender, receiver} pair is exactly
// {loggedInUserID, currentPeer}, in arrival order. It owns no state and
// is fully reconstructible from the snapshot; Store.Conversation is the
// indexed equivalent.
func Project(st State, loggedInUserID string) []domain.Message {
	if st.CurrentPeerID == "" {
		return nil
	}
	want := PairKey(loggedInUserID, st.CurrentPeerID)
	var out []domain.Message
	for _, msg := range st.Messages {
		if PairKey(msg.SenderID, msg.ReceiverID) == want {
			out = append(out, msg)
		}
	}
	return out
}
