package taskclient

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"taskchat/internal/authclient"
	"taskchat/internal/devserver"
	"taskchat/internal/domain"
	taskchat_errors "taskchat/pkg/errors"
	"taskchat/pkg/logger"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "test-secret"}).Router())
	t.Cleanup(srv.Close)

	auth := authclient.New(srv.URL, nil)
	creds, err := auth.Register(context.Background(), "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	return New(srv.URL, creds.Token, nil)
}

func TestCreateAppliesDefaults(t *testing.T) {
	client := newTestClient(t)

	task, err := client.Create(context.Background(), Draft{Title: "buy milk"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "buy milk", task.Title)
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Equal(t, domain.CategoryOther, task.Category)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestCreateRequiresTitle(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Create(context.Background(), Draft{Description: "no title"})
	require.ErrorIs(t, err, taskchat_errors.ErrInvalidInput)
}

func TestListWithFilters(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Create(ctx, Draft{Title: "quarterly report", Category: domain.CategoryWork})
	require.NoError(t, err)
	done, err := client.Create(ctx, Draft{Title: "groceries", Category: domain.CategoryShopping, Status: domain.TaskCompleted})
	require.NoError(t, err)
	_, err = client.Create(ctx, Draft{Title: "dentist", Category: domain.CategoryHealth})
	require.NoError(t, err)

	all, err := client.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := client.List(ctx, Filter{Status: domain.TaskCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	work, err := client.List(ctx, Filter{Category: domain.CategoryWork})
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, "quarterly report", work[0].Title)

	searched, err := client.List(ctx, Filter{Search: "DENT"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, "dentist", searched[0].Title)
}

func TestGetUnknownTask(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), "no-such-id")
	require.ErrorIs(t, err, taskchat_errors.ErrNotFound)
}

func TestUpdatePatchesFields(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task, err := client.Create(ctx, Draft{Title: "draft", Priority: domain.PriorityLow})
	require.NoError(t, err)

	updated, err := client.Update(ctx, task.ID, Draft{Priority: domain.PriorityHigh, Tags: []string{"urgent"}})
	require.NoError(t, err)
	assert.Equal(t, "draft", updated.Title)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.Equal(t, []string{"urgent"}, updated.Tags)
}

func TestToggleFlipsStatus(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task, err := client.Create(ctx, Draft{Title: "flip me"})
	require.NoError(t, err)

	done, err := client.Toggle(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, done.Status)

	back, err := client.Toggle(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, back.Status)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	task, err := client.Create(ctx, Draft{Title: "ephemeral"})
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, task.ID))
	require.ErrorIs(t, client.Delete(ctx, task.ID), taskchat_errors.ErrNotFound)
}

func TestStats(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Create(ctx, Draft{Title: "a", Category: domain.CategoryWork, Status: domain.TaskCompleted})
	require.NoError(t, err)
	_, err = client.Create(ctx, Draft{Title: "b", Category: domain.CategoryWork})
	require.NoError(t, err)
	_, err = client.Create(ctx, Draft{Title: "c", Category: domain.CategoryHealth, Priority: domain.PriorityHigh})
	require.NoError(t, err)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTasks)
	assert.Equal(t, 1, stats.CompletedTasks)
	assert.Equal(t, 2, stats.PendingTasks)
	assert.InDelta(t, 33.33, stats.CompletionRate, 0.001)
	assert.Equal(t, []domain.BucketCount{
		{ID: "health", Count: 1},
		{ID: "work", Count: 2},
	}, stats.TasksByCategory)
	assert.Equal(t, []domain.BucketCount{
		{ID: "high", Count: 1},
		{ID: "medium", Count: 2},
	}, stats.TasksByPriority)
}

func TestRejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "test-secret"}).Router())
	t.Cleanup(srv.Close)

	client := New(srv.URL, "", nil)
	_, err := client.List(context.Background(), Filter{})
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)
}

func TestLogsRejectedRequests(t *testing.T) {
	srv := httptest.NewServer(devserver.New(devserver.Config{JWTSecret: "test-secret"}).Router())
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	client := New(srv.URL, "", &logger.Logger{Logger: zap.New(core)})

	_, err := client.Get(context.Background(), "nope")
	require.ErrorIs(t, err, taskchat_errors.ErrUnauthorized)

	entries := logs.All()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "/api/tasks/nope")
}
