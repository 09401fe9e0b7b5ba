package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kampanyasepeti/crawlworker/internal/rule"
)

// ruleResponse decorates a rule with its derived scheduler state
type ruleResponse struct {
	*rule.CrawlRule
	State string `json:"state"`
}

func (s *Server) ruleResponse(r *rule.CrawlRule) ruleResponse {
	return ruleResponse{CrawlRule: r, State: string(s.sched.StateOf(r))}
}

func (s *Server) listRules(c *gin.Context) {
	var filter rule.Filter
	if brandID := c.Query("brand_id"); brandID != "" {
		filter.BrandID = &brandID
	}
	switch c.Query("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}

	rules, err := s.rules.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, s.ruleResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out, "count": len(out)})
}

func (s *Server) createRule(c *gin.Context) {
	var draft rule.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	created, err := s.rules.Create(c.Request.Context(), draft)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.log.Info().Str("rule_id", created.ID).Str("brand_id", created.BrandID).Msg("Crawl rule created")
	c.JSON(http.StatusCreated, s.ruleResponse(created))
}

func (s *Server) getRule(c *gin.Context) {
	r, err := s.rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ruleResponse(r))
}

func (s *Server) updateRule(c *gin.Context) {
	var patch rule.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	updated, err := s.rules.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.log.Info().Str("rule_id", updated.ID).Msg("Crawl rule updated")
	c.JSON(http.StatusOK, s.ruleResponse(updated))
}

func (s *Server) deleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := s.rules.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	s.log.Info().Str("rule_id", id).Msg("Crawl rule deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) setRuleActive(c *gin.Context) {
	var body struct {
		Active *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	updated, err := s.rules.SetActive(c.Request.Context(), c.Param("id"), *body.Active)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.log.Info().Str("rule_id", updated.ID).Bool("is_active", updated.Active).Msg("Crawl rule active flag changed")
	c.JSON(http.StatusOK, s.ruleResponse(updated))
}

// triggerRule starts a run immediately. The response reports acceptance,
// not the run's outcome: pipeline failures are reflected only in last-run
// metadata and the event stream.
func (s *Server) triggerRule(c *gin.Context) {
	run, err := s.sched.TriggerNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.log.Info().Str("rule_id", run.RuleID).Msg("Manual run triggered")
	c.JSON(http.StatusAccepted, gin.H{
		"rule_id":    run.RuleID,
		"started_at": run.StartedAt,
	})
}
