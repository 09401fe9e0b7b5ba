// Package api exposes the admin and browsing surface over HTTP. Pipeline
// failures never surface here; the admin only sees last-run metadata.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kampanyasepeti/crawlworker/internal/catalog"
	"kampanyasepeti/crawlworker/internal/prefs"
	"kampanyasepeti/crawlworker/internal/rule"
	"kampanyasepeti/crawlworker/internal/scheduler"
	"kampanyasepeti/crawlworker/logger"
	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// Server wires the HTTP handlers to the domain services
type Server struct {
	rules      rule.Store
	catalog    catalog.Catalog
	brands     catalog.BrandDirectory
	categories catalog.CategoryDirectory
	sched      *scheduler.Scheduler
	prefs      *prefs.Service
	log        *logger.Logger
}

// NewServer creates the HTTP server
func NewServer(
	rules rule.Store,
	cat catalog.Catalog,
	brands catalog.BrandDirectory,
	categories catalog.CategoryDirectory,
	sched *scheduler.Scheduler,
	prefSvc *prefs.Service,
	log *logger.Logger,
) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		rules:      rules,
		catalog:    cat,
		brands:     brands,
		categories: categories,
		sched:      sched,
		prefs:      prefSvc,
		log:        log,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.health)

		v1.GET("/rules", s.listRules)
		v1.POST("/rules", s.createRule)
		v1.GET("/rules/:id", s.getRule)
		v1.PUT("/rules/:id", s.updateRule)
		v1.DELETE("/rules/:id", s.deleteRule)
		v1.PUT("/rules/:id/active", s.setRuleActive)
		v1.POST("/rules/:id/run", s.triggerRule)

		v1.GET("/campaigns", s.listCampaigns)
		v1.GET("/brands", s.listBrands)
		v1.GET("/categories", s.listCategories)

		v1.GET("/follows", s.getFollows)
		v1.POST("/follows/brands/:id/toggle", s.toggleFollowBrand)
		v1.POST("/follows/categories/:id/toggle", s.toggleFollowCategory)

		v1.GET("/subscription", s.getSubscription)
		v1.PUT("/subscription", s.updateSubscription)

		v1.GET("/profile/role", s.getRole)
		v1.POST("/profile/role/toggle", s.toggleRole)
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the error taxonomy onto HTTP statuses: validation and
// not-found surface synchronously to the caller, trigger contention is a
// conflict, everything else is a 500
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsAlreadyRunning(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error().Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
