package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kampanyasepeti/crawlworker/internal/prefs"
)

func (s *Server) getFollows(c *gin.Context) {
	state, err := s.prefs.Follows(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) toggleFollowBrand(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.brands.BrandExists(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "brand " + id + " not found"})
		return
	}

	following, err := s.prefs.ToggleBrand(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand_id": id, "following": following})
}

func (s *Server) toggleFollowCategory(c *gin.Context) {
	id := c.Param("id")
	following, err := s.prefs.ToggleCategory(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_id": id, "following": following})
}

func (s *Server) getSubscription(c *gin.Context) {
	sub, err := s.prefs.Subscription(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub, "is_premium": sub.IsPremium()})
}

func (s *Server) updateSubscription(c *gin.Context) {
	var body struct {
		Plan prefs.Plan `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sub, err := s.prefs.Subscribe(c.Request.Context(), body.Plan)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub, "is_premium": sub.IsPremium()})
}

func (s *Server) getRole(c *gin.Context) {
	role, err := s.prefs.Role(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

func (s *Server) toggleRole(c *gin.Context) {
	role, err := s.prefs.ToggleAdmin(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}
