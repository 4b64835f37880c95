package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/cache"
	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/mail"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/pkg/config"
	"github.com/photoblog/photoblog/pkg/logging"
)

const apiPrefix = "/api/v1.0"

// Checker reports the health of a backing service
type Checker interface {
	Health(ctx context.Context) error
}

// Deps are the collaborators of the router
type Deps struct {
	Services *service.Services
	Pages    *cache.PostPages
	Notifier mail.Notifier
	Config   *config.Config
	// Database and Cache are probed by /health. Cache may be nil.
	Database Checker
	Cache    Checker
	// Uploads, when set, is served under the storage base URL.
	Uploads string
}

// Router sets up API routes
type Router struct {
	svc      *service.Services
	pages    *cache.PostPages
	notifier mail.Notifier
	cfg      *config.Config
	database Checker
	cache    Checker
	uploads  string
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	registerValidations()
	return &Router{
		svc:      deps.Services,
		pages:    deps.Pages,
		notifier: deps.Notifier,
		cfg:      deps.Config,
		database: deps.Database,
		cache:    deps.Cache,
		uploads:  deps.Uploads,
		logger:   logging.WithComponent("api-router"),
	}
}

func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	if err := service.RegisterValidations(v); err != nil {
		logging.GetLogger().Error("Failed to register validations", zap.Error(err))
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(requestLogger(logging.WithComponent("http")), instrument())
	if len(r.cfg.Server.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     r.cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	if r.uploads != "" {
		engine.Static(r.cfg.Storage.BaseURL, r.uploads)
	}

	v1 := engine.Group(apiPrefix)

	// Reachable without credentials
	v1.POST("/auth/register", r.register)
	v1.POST("/auth/reset/request", r.requestPasswordReset)
	v1.POST("/auth/reset", r.resetPassword)

	authed := v1.Group("", r.authenticate())

	// Unconfirmed accounts may confirm
	pending := authed.Group("/auth", requireAccount())
	pending.POST("/confirm", r.confirm)
	pending.POST("/confirm/resend", r.resendConfirmation)

	api := authed.Group("", requireConfirmed(), r.ping())
	api.GET("/token", r.token)

	account := api.Group("", requireAccount())
	account.POST("/auth/change-email/request", r.requestEmailChange)
	account.POST("/auth/change-email", r.changeEmail)
	account.POST("/auth/password", r.changePassword)
	account.PUT("/profile", r.updateProfile)

	api.GET("/posts/", r.listPosts)
	api.POST("/posts/", requirePermission(models.PermWriteArticles), r.createPost)
	api.GET("/posts/:id", r.getPost)
	api.PUT("/posts/:id", requirePermission(models.PermWriteArticles), r.updatePost)
	api.DELETE("/posts/:id", requireAccount(), r.deletePost)

	api.GET("/posts/:id/comments/", r.listPostComments)
	api.POST("/posts/:id/comments/", requirePermission(models.PermComment), r.createComment)
	api.GET("/comments/", r.listComments)
	api.GET("/comments/:id", r.getComment)
	api.PUT("/comments/:id/disabled", requirePermission(models.PermModerateComments), r.setCommentDisabled)
	api.DELETE("/comments/:id", requireAccount(), r.deleteComment)

	api.GET("/users/:id", r.getUser)
	api.GET("/users/:id/posts/", r.listUserPosts)
	api.GET("/users/:id/timeline/", r.listTimeline)
	api.GET("/users/:id/followers/", r.listFollowers)
	api.GET("/users/:id/followed/", r.listFollowed)
	api.POST("/users/:id/follow", requirePermission(models.PermFollow), r.follow)
	api.DELETE("/users/:id/follow", requirePermission(models.PermFollow), r.unfollow)

	admin := api.Group("/admin", requirePermission(models.PermAdminister))
	admin.GET("/users", r.adminListUsers)
	admin.POST("/users", r.adminCreateUser)
	admin.GET("/users/:id", r.adminGetUser)
	admin.PUT("/users/:id", r.adminUpdateUser)
	admin.DELETE("/users/:id", r.adminDeleteUser)
	admin.GET("/roles", r.adminListRoles)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	probe := func(name string, ch Checker) {
		if ch == nil {
			checks[name] = "disabled"
			return
		}
		err := ch.Health(c.Request.Context())
		if errors.Is(err, cache.ErrCacheDisabled) {
			checks[name] = "disabled"
			return
		}
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	probe("database", r.database)
	probe("cache", r.cache)

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "photoblog-api",
		"checks":  checks,
	})
}

// pageParam reads ?page=, defaulting to the first page
func pageParam(c *gin.Context, size int) db.Page {
	n, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		n = 1
	}
	return db.NewPage(n, size, size)
}

// idParam reads an integer path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, NewError(http.StatusNotFound, "resource not found"))
		return 0, false
	}
	return id, true
}
