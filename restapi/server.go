// Package restapi surfaces the file, folder, stream, cache, log and slot services over HTTP
// with gin. Every /api/v1 route is guarded by bearer token verification and scoped to the
// tenant of the request.
package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/slots"
)

const requestIDKey = "request_id"

// Services are the implementations the routes dispatch to. Nil services leave their
// routes unregistered.
type Services struct {
	Files    cqldata.FileService
	Folders  cqldata.FolderService
	Streams  cqldata.StreamService
	Cache    cqldata.Cache
	Logger   cqldata.Logger
	LogQuery cqldata.LogQuery
	Signaler *slots.Signaler
}

// Options configures the router.
type Options struct {
	// Verifier checks bearer tokens. Nil disables verification and leaves the slot
	// routes, which run raw CQL, unregistered.
	Verifier TokenVerifier
	// TenantClaim names the verified token claim holding the tenant root folder.
	TenantClaim string
	// TenantHeader names the header holding the tenant root folder when Verifier is nil.
	TenantHeader string
	// Gatherer is served on /metrics when not nil.
	Gatherer prometheus.Gatherer
	// Health reports readiness on /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

// NewRouter creates the gin engine serving services.
func NewRouter(services Services, options Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	methods := NewMethods()
	h := &handlers{Services: services}
	if options.Verifier == nil {
		h.Signaler = nil
	}
	h.register(methods)
	methods.mount(router.Group("/api/v1"), verifyHeaderToken(options.Verifier), tenantRoot(options))

	router.GET("/healthz", func(c *gin.Context) {
		if options.Health != nil {
			if err := options.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cqldata.Version})
	})
	if options.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// requestID tags every request with an X-Request-ID, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey))
	}
}

// statusOf maps an error to its HTTP status code.
func statusOf(err error) int {
	var e cqldata.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case cqldata.NotFound:
		return http.StatusNotFound
	case cqldata.PreconditionFailed:
		return http.StatusPreconditionFailed
	case cqldata.ReadOnly:
		return http.StatusConflict
	case cqldata.NotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON message. Server errors are logged, client errors are not.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		log.Error("request failed", "path", c.Request.URL.Path, "error", err, "request_id", c.GetString(requestIDKey))
	}
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}
