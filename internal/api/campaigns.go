package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kampanyasepeti/crawlworker/internal/catalog"
)

func (s *Server) listCampaigns(c *gin.Context) {
	var filter catalog.Filter
	if brandID := c.Query("brand_id"); brandID != "" {
		filter.BrandID = &brandID
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		status := catalog.Status(rawStatus)
		switch status {
		case catalog.StatusActive, catalog.StatusExpired, catalog.StatusHidden:
			filter.Status = &status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + rawStatus})
			return
		}
	}
	if rawSort := c.Query("sort"); rawSort != "" {
		sortOpt := catalog.SortOption(rawSort)
		if !sortOpt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort option " + rawSort})
			return
		}
		filter.Sort = sortOpt
	}

	campaigns, err := s.catalog.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns, "count": len(campaigns)})
}

func (s *Server) listBrands(c *gin.Context) {
	brands, err := s.brands.ListBrands(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands, "count": len(brands)})
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.categories.ListCategories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}
