package http

import (
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires into routes.
type Deps struct {
	Env          string
	ServiceName  string
	CORSOrigins  []string
	MaxBodyBytes int64
	// StrictTransport enables HSTS; set it when served over TLS.
	StrictTransport bool

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Auth        *middlewares.AuthMiddleware
	AuthLimiter middlewares.Limiter
	Ready       map[string]handlers.ReadinessCheck

	Users       handlers.UserService
	Categories  handlers.CategoryService
	Courses     handlers.CourseService
	Chapters    handlers.ChapterService
	Lessons     handlers.LessonService
	Enrollments handlers.EnrollmentService
	Progress    handlers.ProgressService
	Ratings     handlers.RatingService
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders(d.StrictTransport))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())
	r.Use(d.Auth.Authenticate())

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Resource not found")
	})
	r.NoMethod(handlers.RespondMethodNotAllowed)

	// health
	health := handlers.NewHealthHandler(d.Ready)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(observability.Handler(d.Gatherer)))
	}

	authed := d.Auth.RequireAuth()
	admin := d.Auth.RequireRoles(user.RoleAdmin)
	staff := d.Auth.RequireRoles(user.RoleAdmin, user.RoleInstructor)
	members := d.Auth.RequireRoles(user.RoleAdmin, user.RoleInstructor, user.RoleUser)
	readers := d.Auth.RequireRoles(user.RoleAdmin, user.RoleUser)

	throttle := func(ctx *gin.Context) { ctx.Next() }
	if d.AuthLimiter != nil {
		throttle = middlewares.RateLimit(d.AuthLimiter, middlewares.KeyByIP, d.Prom)
	}

	v1 := r.Group("/api/v1")

	users := handlers.NewUsersHandler(d.Users)
	v1.POST("/users/register", throttle, users.Register)
	v1.POST("/users/login", throttle, users.Login)
	v1.GET("/users/me", authed, users.Me)
	v1.PUT("/users/profile", authed, users.UpdateProfile)
	v1.GET("/users/:id", readers, users.GetByID)
	v1.GET("/users", admin, users.List)
	v1.PUT("/users/:id/roles", admin, users.UpdateRoles)
	v1.DELETE("/users/:id", admin, users.Delete)

	categories := handlers.NewCategoriesHandler(d.Categories)
	v1.POST("/categories", admin, categories.Create)
	v1.PUT("/categories/:id", admin, categories.Update)
	v1.DELETE("/categories/:id", admin, categories.Delete)
	v1.PATCH("/categories/:id/restore", admin, categories.Restore)
	v1.GET("/categories/:id", categories.Get)
	v1.GET("/categories", categories.List)

	courses := handlers.NewCoursesHandler(d.Courses)
	chapters := handlers.NewChaptersHandler(d.Chapters)
	ratings := handlers.NewRatingsHandler(d.Ratings)
	v1.POST("/courses", admin, courses.Create)
	v1.PUT("/courses/:id", staff, courses.Update)
	v1.PATCH("/courses/:id/archive", admin, courses.Archive)
	v1.PATCH("/courses/:id/unarchive", admin, courses.Unarchive)
	v1.GET("/courses/latest", courses.Latest)
	v1.GET("/courses/:id", courses.Get)
	v1.GET("/courses", courses.Search)
	v1.GET("/courses/:id/chapters", authed, chapters.ListByCourse)
	v1.POST("/courses/:id/chapters/reorder", staff, chapters.Renumber)
	v1.GET("/courses/:id/ratings", ratings.ListByCourse)
	v1.GET("/courses/:id/ratings/distribution", ratings.Distribution)

	v1.POST("/chapters", staff, chapters.Create)
	v1.POST("/chapters/bulk", staff, chapters.BulkCreate)
	v1.POST("/chapters/bulk-delete", staff, chapters.BulkDelete)
	v1.POST("/chapters/bulk-restore", staff, chapters.BulkRestore)
	v1.PUT("/chapters/:id", staff, chapters.Update)
	v1.PATCH("/chapters/:id/reorder", staff, chapters.Reorder)
	v1.DELETE("/chapters/:id", staff, chapters.Delete)
	v1.PATCH("/chapters/:id/restore", staff, chapters.Restore)
	v1.GET("/chapters/:id", authed, chapters.Get)
	v1.GET("/chapters/:id/lessons", authed, chapters.GetWithLessons)

	lessons := handlers.NewLessonsHandler(d.Lessons)
	v1.POST("/chapters/:id/lessons/reorder", staff, lessons.Renumber)
	v1.POST("/lessons", staff, lessons.Create)
	v1.POST("/lessons/bulk", staff, lessons.BulkCreate)
	v1.PUT("/lessons/bulk", staff, lessons.BulkUpdate)
	v1.POST("/lessons/bulk-delete", staff, lessons.BulkDelete)
	v1.POST("/lessons/bulk-restore", staff, lessons.BulkRestore)
	v1.PUT("/lessons/:id", staff, lessons.Update)
	v1.DELETE("/lessons/:id", staff, lessons.Delete)
	v1.PATCH("/lessons/:id/restore", staff, lessons.Restore)
	v1.GET("/lessons/search", authed, lessons.Search)
	v1.GET("/lessons/:id", authed, lessons.Get)
	v1.GET("/lessons", authed, lessons.ListByChapter)

	enrollments := handlers.NewEnrollmentsHandler(d.Enrollments)
	v1.POST("/enrollments", members, enrollments.Enroll)
	v1.GET("/enrollments", members, enrollments.List)
	v1.GET("/enrollments/:courseId", members, enrollments.Get)
	v1.PATCH("/enrollments/:courseId/drop", members, enrollments.Drop)
	v1.PATCH("/enrollments/:courseId/resume", members, enrollments.Resume)

	progress := handlers.NewProgressHandler(d.Progress)
	v1.POST("/lesson-progress/start", members, progress.Start)
	v1.POST("/lesson-progress/complete", members, progress.Complete)
	v1.GET("/lesson-progress", members, progress.List)

	v1.POST("/course-ratings", members, ratings.Rate)
	v1.PUT("/course-ratings/:id", members, ratings.Update)
	v1.DELETE("/course-ratings/:id", members, ratings.Delete)

	return r
}
