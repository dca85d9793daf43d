package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cohortboard/internal/config"
	"cohortboard/internal/db"
	"cohortboard/internal/handlers"
	"cohortboard/internal/middleware"
	"cohortboard/internal/router"
	"cohortboard/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const uploadsPrefix = "/uploads"

func main() {
	cfg := config.Load()

	// Initialize Database
	conn := db.Init(cfg.Database)

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background counter repair
	counters := services.NewCounterSync(conn)
	counters.Start(ctx)
	counters.StartNightly(ctx, 3)

	mail := services.NewMailService(cfg.Mail, cfg.Server.TemplatesDir, cfg.Server.SiteURL)
	imageStore, err := newImageStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to init image store: %v", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	verifier := services.NewVerificationService(conn, mail)
	posts := services.NewPostService(conn)

	// Initialize Gin
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsCfg.AllowOrigins = []string{cfg.Server.SiteURL}
	}
	r.Use(cors.New(corsCfg))

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("cohortboard_session", store))

	renderer, err := router.LoadTemplates(cfg.Server.TemplatesDir)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	r.HTMLRender = renderer

	if cfg.Storage.Kind != "imgur" {
		r.Static(uploadsPrefix, cfg.Storage.UploadDir)
	}

	r.Use(middleware.LoadUser(conn))

	router.RegisterRoutes(r, router.Handlers{
		Auth:  handlers.NewAuthHandler(conn, cfg, handlers.NewGoogleProvider(cfg.Google, cfg.Server.SiteURL), verifier),
		Post:  handlers.NewPostHandler(posts),
		Image: handlers.NewImageHandler(imageStore),
		Admin: handlers.NewAdminHandler(
			conn,
			services.NewApprovedUserService(conn),
			services.NewReviewService(conn),
			services.NewReportService(conn),
			posts,
			counters,
			mail,
		),
	}, router.Gates{
		Verified:  verifier,
		Limiter:   middleware.NewLimiter(cfg.RateLimit, rdb),
		RateLimit: cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("cohortboard server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

func newImageStore(cfg config.StorageConfig) (services.ImageStore, error) {
	if cfg.Kind == "imgur" {
		if cfg.IMGURClientID == "" {
			return nil, errors.New("IMGUR_CLIENT_ID is required for IMAGE_STORE=imgur")
		}
		return services.NewImgurImageStore(cfg.IMGURClientID), nil
	}
	return services.NewLocalImageStore(cfg.UploadDir, uploadsPrefix)
}
