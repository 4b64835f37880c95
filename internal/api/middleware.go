package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/service"
	"github.com/photoblog/photoblog/pkg/logging"
	"github.com/photoblog/photoblog/pkg/telemetry"
)

const (
	principalKey = "principal"
	tokenUsedKey = "token_used"
)

// principal returns whoever issues the request, Anonymous before
// authentication.
func principal(c *gin.Context) models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Anonymous{}
}

// currentAccount returns the authenticated account, nil for anonymous
// requests.
func currentAccount(c *gin.Context) *models.Account {
	a, _ := principal(c).(*models.Account)
	return a
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.FromContext(c.Request.Context(), logger).Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// instrument opens a span per request and records request count and
// duration by route and status.
func instrument() gin.HandlerFunc {
	meter := telemetry.Meter()
	requests, _ := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of handled HTTP requests"))
	duration, _ := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Duration of handled HTTP requests"),
		metric.WithUnit("ms"))

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := telemetry.StartSpan(c.Request.Context(), c.Request.Method+" "+route)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", status),
		)
		if requests != nil {
			requests.Add(ctx, 1, attrs)
		}
		if duration != nil {
			duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		}
	}
}

// authenticate resolves HTTP Basic credentials. An empty username makes the
// request anonymous, an empty password treats the username as an auth
// token. A missing header or bad credentials is a 401.
func (r *Router) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="Authentication Required"`)
			sendError(c, unauthorized("invalid credentials"))
			return
		}
		p, tokenUsed, err := r.resolve(c.Request.Context(), user, password)
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="Authentication Required"`)
			sendError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Set(tokenUsedKey, tokenUsed)
		c.Next()
	}
}

func (r *Router) resolve(ctx context.Context, user, password string) (models.Principal, bool, error) {
	if user == "" {
		return models.Anonymous{}, false, nil
	}
	if password == "" {
		account, err := r.svc.Accounts.VerifyAuthToken(ctx, user)
		if err != nil {
			return nil, false, err
		}
		if account == nil {
			return nil, false, unauthorized("invalid credentials")
		}
		return account, true, nil
	}
	account, err := r.svc.Accounts.Authenticate(ctx, user, password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return nil, false, unauthorized("invalid credentials")
		}
		return nil, false, err
	}
	return account, false, nil
}

// requireConfirmed rejects registered accounts that have not confirmed
// their email yet.
func requireConfirmed() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a := currentAccount(c); a != nil && !a.Confirmed {
			sendError(c, forbidden("unconfirmed account"))
			return
		}
		c.Next()
	}
}

// requireAccount rejects anonymous requests
func requireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentAccount(c) == nil {
			sendError(c, unauthorized("invalid credentials"))
			return
		}
		c.Next()
	}
}

// requirePermission rejects principals lacking perm
func requirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principal(c).Can(perm) {
			sendError(c, forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// ping records activity of the authenticated account
func (r *Router) ping() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a := currentAccount(c); a != nil {
			if err := r.svc.Accounts.Ping(c.Request.Context(), a); err != nil {
				r.logger.Warn("Failed to record last seen", zap.Int64("account_id", a.ID), zap.Error(err))
			}
		}
		c.Next()
	}
}
