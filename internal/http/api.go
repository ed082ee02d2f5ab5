package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/auth"
	"taskflow/internal/service"
)

// Options carries the transport settings the handler needs.
type Options struct {
	Prefix          string
	AppName         string
	Version         string
	Environment     string
	TokenTTL        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.AuthService
	tasks    service.TaskService
	exports  service.ExportService
	resolver auth.Resolver
	logger   *logrus.Logger
	opts     Options
}

// NewHandler builds the handler. exports may be nil, in which case the export
// routes are not registered.
func NewHandler(users service.AuthService, tasks service.TaskService, exports service.ExportService, resolver auth.Resolver, logger *logrus.Logger, opts Options) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	useWireFieldNames()
	if opts.Prefix == "" {
		opts.Prefix = "/api/v1"
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	return &Handler{
		users:    users,
		tasks:    tasks,
		exports:  exports,
		resolver: resolver,
		logger:   logger,
		opts:     opts,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))

	router.GET("/", h.root)
	router.GET("/health", h.health)

	api := router.Group(h.opts.Prefix)
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)

		me := authGroup.Group("/me", h.requireActor())
		me.GET("", h.me)
		me.PATCH("", h.updateMe)

		tasks := api.Group("/tasks", h.requireActor())
		tasks.POST("", h.createTask)
		tasks.GET("", h.listTasks)
		if h.exports != nil {
			tasks.POST("/export", h.exportTasks)
			tasks.GET("/exports", h.listExports)
		}
		tasks.GET("/:id", h.getTask)
		tasks.PUT("/:id", h.updateTask)
		tasks.DELETE("/:id", h.deleteTask)
		tasks.PATCH("/:id/complete", h.completeTask)
	}
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to " + h.opts.AppName,
		"version": h.opts.Version,
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     h.opts.AppName,
		"version":     h.opts.Version,
		"environment": h.opts.Environment,
	})
}
