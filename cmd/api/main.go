package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/db"
	httpx "github.com/geocoder89/coursehub/internal/http"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/redisclient"
	"github.com/geocoder89/coursehub/internal/repo/postgres"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx := context.Background()

	// Load the config set up
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("config failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	dsn := cfg.DB.DatabaseURL()
	if err := db.MigrateUp(dsn); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, dsn, cfg.DB.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	created, err := db.EnsureAdminUser(ctx, pool, cfg.Admin)
	if err != nil {
		log.Error("admin bootstrap failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("bootstrap admin created", "email", cfg.Admin.Email)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	ready := map[string]handlers.ReadinessCheck{
		"postgres": pool.Ping,
	}

	// login/register throttling is shared across replicas when Redis is configured
	var limiter middlewares.Limiter = middlewares.NewRateLimiter(cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow)
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		limiter = middlewares.NewRedisRateLimiter(rdb.Raw(), cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow)
		ready["redis"] = rdb.Ping
		log.Info("using redis rate limiter", "addr", cfg.Redis.Addr)
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	categoriesRepo := postgres.NewCategoriesRepo(pool, prom)
	coursesRepo := postgres.NewCoursesRepo(pool, prom)
	chaptersRepo := postgres.NewChaptersRepo(pool, prom)
	lessonsRepo := postgres.NewLessonsRepo(pool, prom)
	enrollmentsRepo := postgres.NewEnrollmentsRepo(pool, prom)
	progressRepo := postgres.NewProgressRepo(pool, prom)
	ratingsRepo := postgres.NewRatingsRepo(pool, prom)

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)

	router := httpx.NewRouter(httpx.Deps{
		Env:             cfg.Env,
		ServiceName:     cfg.Tracing.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		StrictTransport: !cfg.IsDev(),
		Prom:            prom,
		Gatherer:        reg,
		Auth:            middlewares.NewAuthMiddleware(tokens, usersRepo, prom),
		AuthLimiter:     limiter,
		Ready:           ready,
		Users:           service.NewUserService(usersRepo, tokens, cfg.Admin.Email),
		Categories:      service.NewCategoryService(categoriesRepo),
		Courses:         service.NewCourseService(coursesRepo, usersRepo, categoriesRepo),
		Chapters:        service.NewChapterService(chaptersRepo, coursesRepo),
		Lessons:         service.NewLessonService(lessonsRepo, chaptersRepo, coursesRepo),
		Enrollments:     service.NewEnrollmentService(enrollmentsRepo, coursesRepo),
		Progress:        service.NewProgressService(progressRepo, lessonsRepo, chaptersRepo, enrollmentsRepo),
		Ratings:         service.NewRatingService(ratingsRepo, coursesRepo),
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
