package server

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/constants"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/handlers"
	"github.com/yukikurage/task-assignment-api/internal/logger"
	"github.com/yukikurage/task-assignment-api/internal/middleware"
	"github.com/yukikurage/task-assignment-api/internal/services"
	"gorm.io/gorm"
)

// Deps holds what the router wires into handlers
type Deps struct {
	DB                 *gorm.DB
	Log                zerolog.Logger
	SessionStore       sessions.Store
	Users              *services.UserService
	Tasks              *services.TaskService
	CORSAllowedOrigins []string
	QueryTimeout       time.Duration
}

// NewRouter builds the gin engine with every API route
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(deps.Log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(deps.CORSAllowedOrigins))
	r.Use(sessions.Sessions(constants.SessionCookieName, deps.SessionStore))
	r.Use(middleware.QueryTimeout(deps.QueryTimeout))

	r.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Endpoint not found")
	})
	r.NoMethod(apierrors.MethodNotAllowed)

	authHandler := handlers.NewAuthHandler(deps.Users)
	userHandler := handlers.NewUserHandler(deps.Users)
	taskHandler := handlers.NewTaskHandler(deps.Tasks)
	dashboardHandler := handlers.NewDashboardHandler(deps.Users, deps.Tasks)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	requireAuth := middleware.RequireAuth(deps.Users)
	requireAdmin := middleware.RequireAdmin()
	requireTask := middleware.RequireTaskAccess(deps.Tasks)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("", authHandler.Post)
			auth.GET("", authHandler.Status)
		}

		users := api.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("", requireAdmin, userHandler.ListUsers)
			users.POST("", requireAdmin, userHandler.CreateUser)
			users.GET("/me", userHandler.GetCurrentUser)
			users.GET("/:id", middleware.RequireSelfOrAdmin(), userHandler.GetUser)
			users.PUT("/:id", middleware.RequireSelfOrAdmin(), userHandler.UpdateUser)
			users.PUT("/:id/password", middleware.RequireSelfOrAdmin(), userHandler.UpdatePassword)
			users.DELETE("/:id", requireAdmin, userHandler.DeleteUser)
		}

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", requireAdmin, taskHandler.CreateTask)
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.GET("/overdue", taskHandler.GetOverdue)
			tasks.GET("/upcoming", taskHandler.GetUpcoming)
			tasks.POST("/reminders", requireAdmin, taskHandler.SendReminders)
			tasks.GET("/:id", requireTask, taskHandler.GetTask)
			tasks.PUT("/:id", requireTask, taskHandler.UpdateTask)
			tasks.DELETE("/:id", requireAdmin, taskHandler.DeleteTask)
			tasks.GET("/:id/history", requireTask, taskHandler.GetHistory)
		}

		api.GET("/dashboard", requireAuth, dashboardHandler.GetDashboard)
	}

	return r
}
