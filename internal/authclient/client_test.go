package authclient

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"taskchat/internal/devserver"
	taskchat_errors "taskchat/pkg/errors"
	"taskchat/pkg/logger"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "test-secret"}).Router())
	t.Cleanup(srv.Close)
	return New(srv.URL, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	creds, err := client.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, creds.Token)
	assert.NotEmpty(t, creds.User.ID)
	assert.Equal(t, "Alice", creds.User.DisplayName)
	assert.Equal(t, "alice@example.com", creds.User.Email)

	again, err := client.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, again.User.ID)
	assert.NotEmpty(t, again.Token)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = client.Register(ctx, "Other Alice", "alice@example.com", "secret456")
	require.ErrorIs(t, err, taskchat_errors.ErrAlreadyExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = client.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)

	_, err = client.Login(ctx, "nobody@example.com", "secret123")
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)
}

func TestProfileRequiresToken(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	creds, err := client.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	user, err := client.Profile(ctx, creds.Token)
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, user.ID)

	_, err = client.Profile(ctx, "garbage-token")
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)
}

func TestListUsersExcludesCaller(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	alice, err := client.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	bob, err := client.Register(ctx, "Bob", "bob@example.com", "secret123")
	require.NoError(t, err)

	roster, err := client.ListUsers(ctx, alice.Token)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, bob.User.ID, roster[0].ID)
	assert.False(t, roster[0].IsOnline)
}

func TestLogsRejectedRequests(t *testing.T) {
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "test-secret"}).Router())
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	client := New(srv.URL, &logger.Logger{Logger: zap.New(core)})

	_, err := client.Login(context.Background(), "nobody@example.com", "wrong")
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)

	entries := logs.All()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "/api/auth/login")
}

func TestIdentityFromToken(t *testing.T) {
	client := newTestClient(t)

	creds, err := client.Register(context.Background(), "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	claims, err := IdentityFromToken(creds.Token)
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, claims.Subject)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "alice@example.com", claims.Email)
	require.NotNil(t, claims.ExpiresAt)

	_, err = IdentityFromToken("not.a.token")
	require.Error(t, err)
}
