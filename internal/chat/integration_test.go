package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/internal/authclient"
	"taskchat/internal/connection"
	"taskchat/internal/devserver"
	"taskchat/internal/domain"
	taskchat_errors "taskchat/pkg/errors"
)

// testClient is one fully wired user against the reference server.
type testClient struct {
	creds authclient.Credentials
	conn  *connection.Manager
	sess  *Session
}

func (c *testClient) close() {
	c.sess.Close()
	c.conn.Disconnect()
}

type chatFixture struct {
	t     *testing.T
	srv   *httptest.Server
	auth  *authclient.Client
	wsURL string
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "integration-secret"}).Router())
	t.Cleanup(srv.Close)
	return &chatFixture{
		t:     t,
		srv:   srv,
		auth:  authclient.New(srv.URL, nil),
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *chatFixture) signUp(name, email string) *testClient {
	f.t.Helper()
	creds, err := f.auth.Register(context.Background(), name, email, "secret123")
	require.NoError(f.t, err)

	conn := connection.NewManager(connection.Config{
		URL:            f.wsURL,
		InitialBackoff: 20 * time.Millisecond,
	})
	require.NoError(f.t, conn.Connect(creds.Token))

	client := &testClient{
		creds: creds,
		conn:  conn,
		sess:  NewSession(creds.User, conn, 80*time.Millisecond, nil),
	}
	f.t.Cleanup(client.close)
	return client
}

func TestIntegration_MessageRoundTrip(t *testing.T) {
	f := newChatFixture(t)
	alice := f.signUp("Alice", "alice@example.com")
	bob := f.signUp("Bob", "bob@example.com")

	// Presence converges on both sides.
	require.Eventually(t, func() bool {
		return alice.sess.Snapshot().containsOnline(bob.creds.User.ID) &&
			bob.sess.Snapshot().containsOnline(alice.creds.User.ID)
	}, 2*time.Second, 10*time.Millisecond)

	alice.sess.SelectConversation(&bob.creds.User)
	alice.sess.SendMessage(bob.creds.User.ID, "hi bob", domain.KindText, "")

	// The optimistic entry is confirmed in place by the server echo.
	require.Eventually(t, func() bool {
		msgs := alice.sess.Conversation()
		return len(msgs) == 1 && !msgs[0].Pending && msgs[0].ID != ""
	}, 2*time.Second, 10*time.Millisecond)

	// Bob receives it and, with no conversation open, gains a badge.
	require.Eventually(t, func() bool {
		st := bob.sess.Snapshot()
		return len(st.Messages) == 1 && st.UnreadCounts[alice.creds.User.ID] == 1
	}, 2*time.Second, 10*time.Millisecond)

	bob.sess.SelectConversation(&alice.creds.User)
	require.Eventually(t, func() bool {
		return bob.sess.Snapshot().UnreadCounts[alice.creds.User.ID] == 0
	}, 2*time.Second, 10*time.Millisecond)

	msgs := bob.sess.Conversation()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi bob", msgs[0].Text)
	assert.False(t, msgs[0].IsRead)

	// The read receipt travels back to the original sender only.
	bob.sess.MarkRead(msgs[0].ID)
	require.Eventually(t, func() bool {
		sent := alice.sess.Conversation()
		return len(sent) == 1 && sent[0].IsRead
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_TypingIndicator(t *testing.T) {
	f := newChatFixture(t)
	alice := f.signUp("Alice", "alice2@example.com")
	bob := f.signUp("Bob", "bob2@example.com")

	alice.sess.SelectConversation(&bob.creds.User)
	alice.sess.Keystroke()

	require.Eventually(t, func() bool {
		st := bob.sess.Snapshot()
		return len(st.TypingUserIDs) == 1 && st.TypingUserIDs[0] == alice.creds.User.ID
	}, 2*time.Second, 10*time.Millisecond)

	// Silence past the inactivity window clears the indicator.
	require.Eventually(t, func() bool {
		return len(bob.sess.Snapshot().TypingUserIDs) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_OfflinePresenceBroadcast(t *testing.T) {
	f := newChatFixture(t)
	alice := f.signUp("Alice", "alice3@example.com")
	bob := f.signUp("Bob", "bob3@example.com")

	require.Eventually(t, func() bool {
		return alice.sess.Snapshot().containsOnline(bob.creds.User.ID)
	}, 2*time.Second, 10*time.Millisecond)

	bob.conn.Disconnect()
	require.Eventually(t, func() bool {
		return !alice.sess.Snapshot().containsOnline(bob.creds.User.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_InvalidTokenRejected(t *testing.T) {
	f := newChatFixture(t)

	conn := connection.NewManager(connection.Config{URL: f.wsURL})
	err := conn.Connect("not-a-token")
	require.ErrorIs(t, err, taskchat_errors.ErrAuthFailed)
}

func (st State) containsOnline(id string) bool {
	for _, online := range st.OnlineUserIDs {
		if online == id {
			return true
		}
	}
	return false
}
