// Package taskclient is the client for the task CRUD REST API: create,
// list with filters, fetch, update, delete and the aggregate stats used
// by the dashboard.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"taskchat/internal/domain"
	taskchat_errors "taskchat/pkg/errors"
	"taskchat/pkg/logger"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// New creates a task client bound to one session credential.
func New(baseURL, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Draft carries the writable task fields for create and update calls.
type Draft struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Status      domain.TaskStatus   `json:"status,omitempty"`
	Category    domain.TaskCategory `json:"category,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Priority    domain.TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
}

// Filter narrows List results. Zero fields are not sent.
type Filter struct {
	Status   domain.TaskStatus
	Category domain.TaskCategory
	Search   string
}

func (f Filter) query() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) Create(ctx context.Context, draft Draft) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", draft, &task)
	return task, err
}

func (c *Client) List(ctx context.Context, filter Filter) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks"+filter.query(), nil, &tasks)
	return tasks, err
}

func (c *Client) Get(ctx context.Context, id string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+id, nil, &task)
	return task, err
}

func (c *Client) Update(ctx context.Context, id string, draft Draft) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+id, draft, &task)
	return task, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// Toggle flips a task between pending and completed.
func (c *Client) Toggle(ctx context.Context, task domain.Task) (domain.Task, error) {
	status := domain.TaskCompleted
	if task.Status == domain.TaskCompleted {
		status = domain.TaskPending
	}
	return c.Update(ctx, task.ID, Draft{Status: status})
}

func (c *Client) Stats(ctx context.Context) (domain.TaskStats, error) {
	var stats domain.TaskStats
	err := c.do(ctx, http.MethodGet, "/api/tasks/stats", nil, &stats)
	return stats, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugf("%s %s failed: %v", method, path, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := apiError(resp)
		c.log.Debugf("%s %s rejected: %v", method, path, err)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error == "" {
		payload.Error = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = taskchat_errors.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = taskchat_errors.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = taskchat_errors.ErrForbidden
	case http.StatusNotFound:
		sentinel = taskchat_errors.ErrNotFound
	case http.StatusConflict:
		sentinel = taskchat_errors.ErrConflict
	default:
		return fmt.Errorf("api error: %s", payload.Error)
	}
	return fmt.Errorf("%s: %w", payload.Error, sentinel)
}
