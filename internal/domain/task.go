package domain

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type TaskCategory string

const (
	CategoryWork      TaskCategory = "work"
	CategoryPersonal  TaskCategory = "personal"
	CategoryShopping  TaskCategory = "shopping"
	CategoryHealth    TaskCategory = "health"
	CategoryEducation TaskCategory = "education"
	CategoryFinance   TaskCategory = "finance"
	CategoryOther     TaskCategory = "other"
)

// Task is a to-do item owned by a single user.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Category    TaskCategory `json:"category"`
	Tags        []string     `json:"tags"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	UserID      string       `json:"userId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// BucketCount is one row of a grouped aggregate (per category, per
// priority).
type BucketCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// TaskStats are the aggregate figures shown on the dashboard.
type TaskStats struct {
	TotalTasks      int           `json:"totalTasks"`
	CompletedTasks  int           `json:"completedTasks"`
	PendingTasks    int           `json:"pendingTasks"`
	CompletionRate  float64       `json:"completionRate"`
	TasksByCategory []BucketCount `json:"tasksByCategory"`
	TasksByPriority []BucketCount `json:"tasksByPriority"`
}
