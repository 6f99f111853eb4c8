package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/team-taskboard/internal/errors"
	"github.com/yukikurage/team-taskboard/internal/handlers"
	"github.com/yukikurage/team-taskboard/internal/middleware"
	"github.com/yukikurage/team-taskboard/internal/services"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	AuthService    *services.AuthService
	TaskService    *services.TaskService
	Hub            handlers.Subscriber
	AllowedOrigins []string
	SecureCookie   bool
}

// New builds the gin engine with every route mounted.
func New(deps Deps) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.Default()
	r.Use(middleware.CORS(deps.AllowedOrigins))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.SecureCookie)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)
	eventsHandler := handlers.NewEventsHandler(deps.Hub)
	requireAuth := middleware.RequireAuth(deps.AuthService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.GetCurrentUser)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/suggest", taskHandler.SuggestTasks)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}

		api.GET("/events", requireAuth, eventsHandler.Stream)
	}

	r.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Route not found")
	})

	return r, nil
}
