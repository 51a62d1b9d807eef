package devserver

import (
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskchat/internal/domain"
)

type taskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Category    domain.TaskCategory `json:"category"`
	Tags        []string            `json:"tags"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	userID := c.GetString(ctxUserID)
	now := time.Now()
	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Category:    req.Category,
		Tags:        req.Tags,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = domain.TaskPending
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.Category == "" {
		task.Category = domain.CategoryOther
	}

	s.mu.Lock()
	if s.tasks[userID] == nil {
		s.tasks[userID] = make(map[string]*domain.Task)
	}
	s.tasks[userID][task.ID] = task
	s.mu.Unlock()

	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	status := c.Query("status")
	category := c.Query("category")
	search := strings.ToLower(c.Query("search"))

	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks[userID]))
	for _, task := range s.tasks[userID] {
		if status != "" && string(task.Status) != status {
			continue
		}
		if category != "" && string(task.Category) != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		out = append(out, *task)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTask(c *gin.Context) {
	s.mu.RLock()
	task, ok := s.tasks[c.GetString(ctxUserID)][c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.mu.Lock()
	task, ok := s.tasks[c.GetString(ctxUserID)][c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Status != "" {
		task.Status = req.Status
	}
	if req.Category != "" {
		task.Category = req.Category
	}
	if req.Tags != nil {
		task.Tags = req.Tags
	}
	if req.Priority != "" {
		task.Priority = req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	task.UpdatedAt = time.Now()
	updated := *task
	s.mu.Unlock()

	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	id := c.Param("id")

	s.mu.Lock()
	_, ok := s.tasks[userID][id]
	if ok {
		delete(s.tasks[userID], id)
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (s *Server) handleTaskStats(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	s.mu.RLock()
	stats := domain.TaskStats{
		TasksByCategory: []domain.BucketCount{},
		TasksByPriority: []domain.BucketCount{},
	}
	byCategory := make(map[string]int)
	byPriority := make(map[string]int)
	for _, task := range s.tasks[userID] {
		stats.TotalTasks++
		if task.Status == domain.TaskCompleted {
			stats.CompletedTasks++
		} else {
			stats.PendingTasks++
		}
		byCategory[string(task.Category)]++
		byPriority[string(task.Priority)]++
	}
	s.mu.RUnlock()

	if stats.TotalTasks > 0 {
		rate := float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	for _, id := range sortedCountKeys(byCategory) {
		stats.TasksByCategory = append(stats.TasksByCategory, domain.BucketCount{ID: id, Count: byCategory[id]})
	}
	for _, id := range sortedCountKeys(byPriority) {
		stats.TasksByPriority = append(stats.TasksByPriority, domain.BucketCount{ID: id, Count: byPriority[id]})
	}
	c.JSON(http.StatusOK, stats)
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
