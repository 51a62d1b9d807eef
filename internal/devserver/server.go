// Package devserver is an in-memory reference implementation of the
// collaborator contract the client depends on: the auth/identity REST
// API, the task CRUD REST API and the realtime chat channel. It exists so
// the SDK, its integration tests and local development work with zero
// infrastructure; nothing in it survives a restart.
package devserver

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"taskchat/internal/domain"
	"taskchat/pkg/logger"
)

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *logger.Logger
}

type account struct {
	user         domain.User
	passwordHash []byte
}

type Server struct {
	log       *logger.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	hub       *hub

	mu       sync.RWMutex
	users    map[string]*account
	byEmail  map[string]string
	tasks    map[string]map[string]*domain.Task
	messages map[string]*domain.Message
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Server{
		log:       log,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		hub:       newHub(),
		users:     make(map[string]*account),
		byEmail:   make(map[string]string),
		tasks:     make(map[string]map[string]*domain.Task),
		messages:  make(map[string]*domain.Message),
	}
}

// Router builds the HTTP surface: auth and task REST routes plus the
// websocket endpoint.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/profile", s.authRequired(), s.handleProfile)
	}

	r.GET("/api/users", s.authRequired(), s.handleListUsers)

	tasks := r.Group("/api/tasks", s.authRequired())
	{
		tasks.POST("", s.handleCreateTask)
		tasks.GET("", s.handleListTasks)
		tasks.GET("/stats", s.handleTaskStats)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PUT("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
	}

	r.GET("/ws", s.handleSocket)
	return r
}

func (s *Server) lookupUser(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.users[id]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}
