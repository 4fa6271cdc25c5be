package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ds124wfegd/courseportal/internal/auth"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/internal/transport/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Session        SessionConfig
	Tokens         *auth.TokenManager
	HealthChecks   map[string]HealthCheck
}

type Handlers struct {
	Enrollment *EnrollmentHandler
	Course     *CourseHandler
	User       *UserHandler
	Content    *ContentHandler
	School     *SchoolHandler
	Admin      *AdminHandler
}

func NewHandlers(services *service.Services, cfg RouterConfig, admin *AdminHandler) *Handlers {
	return &Handlers{
		Enrollment: NewEnrollmentHandler(services.Enrollment),
		Course:     NewCourseHandler(services.Catalog),
		User:       NewUserHandler(services.User, services.Enrollment, cfg.Tokens, cfg.Session),
		Content:    NewContentHandler(services.Content),
		School:     NewSchoolHandler(services.School),
		Admin:      admin,
	}
}

func InitRoutes(cfg RouterConfig, services *service.Services, h *Handlers) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	router.Use(middleware.Logger("/health", "/metrics"))
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.GET("/health", healthHandler(cfg.HealthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(cfg.Tokens, services.User, cfg.Session.CookieName))
	api.Use(middleware.Maintenance(services.Content, "/api/v1/maintenance", "/api/v1/admin", "/api/v1/logout"))
	{
		api.GET("/maintenance", h.Content.GetMaintenance)
		api.GET("/faq", h.Content.ListFAQ)
		api.POST("/logout", h.User.Logout)

		// Catalog routes
		api.GET("/lines", h.Course.GetLines)
		api.GET("/lines/:id/courses", h.Course.GetLineCourses)
		api.GET("/courses", h.Course.GetAllCourses)
		api.GET("/courses/:id", h.Course.GetCourse)
		api.GET("/courses/:id/seats", h.Enrollment.GetSeats)

		// User routes
		api.POST("/users", h.User.RegisterUser)
		me := api.Group("", middleware.RequireUser())
		{
			me.GET("/users/me", h.User.GetMe)
			me.DELETE("/users/me", h.User.DeleteMe)

			me.POST("/enrollments", h.Enrollment.Enroll)
			me.DELETE("/enrollments", h.Enrollment.Unenroll)
			me.DELETE("/waitlist", h.Enrollment.LeaveWaitlist)
		}

		// Admin routes
		admin := api.Group("/admin", middleware.RequireStaff())
		{
			admin.GET("/users", h.Admin.ListUsers)
			admin.PUT("/users/:id/enrollment", h.Admin.SetEnrollment)
			admin.PUT("/users/:id/role", h.Admin.SetRole)

			admin.POST("/lines", h.Course.CreateLine)
			admin.POST("/courses", h.Course.CreateCourse)
			admin.PUT("/courses/:id", h.Course.UpdateCourse)
			admin.PUT("/courses/:id/seats", h.Admin.SetSeats)

			admin.GET("/waitlist", h.Admin.ListWaitlist)
			admin.DELETE("/waitlist/:id", h.Admin.RemoveWaitlistEntry)

			admin.POST("/faq", h.Content.CreateFAQ)
			admin.PUT("/faq/:id", h.Content.UpdateFAQ)
			admin.DELETE("/faq/:id", h.Content.DeleteFAQ)
			admin.PUT("/maintenance", h.Content.SetMaintenance)

			admin.GET("/schools", h.School.ListSchools)
			admin.POST("/schools", h.School.CreateSchool)
			admin.PUT("/schools/:id", h.School.UpdateSchool)
			admin.DELETE("/schools/:id", h.School.DeactivateSchool)

			admin.GET("/tasks/failed", h.Admin.ListFailedTasks)
			admin.POST("/tasks/failed/:id/requeue", h.Admin.RequeueFailedTask)
			admin.DELETE("/tasks/failed/:id", h.Admin.DeleteFailedTask)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a literal "*".
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		c.JSON(status, gin.H{
			"status":       http.StatusText(status),
			"dependencies": deps,
			"timestamp":    time.Now().UTC(),
		})
	}
}
