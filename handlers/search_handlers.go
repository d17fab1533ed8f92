package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policy-qa-backend/services"
	"github.com/policy-qa-backend/services/search"
)

// SparseIndexInvalidator drops the cached lexical index so the next search
// rebuilds it from the vector store.
type SparseIndexInvalidator interface {
	RebuildSparseIndex()
}

type SearchHandlers struct {
	searchService services.SearchService
	configStore   *search.ConfigStore
	invalidator   SparseIndexInvalidator
}

func NewSearchHandlers(searchService services.SearchService, configStore *search.ConfigStore, invalidator SparseIndexInvalidator) *SearchHandlers {
	return &SearchHandlers{
		searchService: searchService,
		configStore:   configStore,
		invalidator:   invalidator,
	}
}

// SearchPolicies runs the policy discovery search. Weak internal results are
// supplemented by a web fallback, so the endpoint answers 200 even when every
// retrieval stage comes back thin.
func (h *SearchHandlers) SearchPolicies(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	region := c.Query("region")
	category := c.Query("category")
	targetGroup := c.Query("target_group")
	sessionID := c.Query("session_id")

	result, err := h.searchService.Search(c.Request.Context(), query, region, category, targetGroup, sessionID)
	if err != nil {
		log.Printf("error: policy search failed query=%q: %v", query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateSearchConfig applies a partial tuning overlay to the active search
// configuration and returns the result.
func (h *SearchHandlers) UpdateSearchConfig(c *gin.Context) {
	var update search.ConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := h.configStore.Update(update)
	log.Printf("search config updated threshold=%.2f fusion=%s", cfg.DefaultScoreThreshold, cfg.FusionMode)
	c.JSON(http.StatusOK, gin.H{"status": "updated", "config": cfg})
}

// RebuildIndex invalidates the sparse index. The rebuild itself happens
// lazily on the next search.
func (h *SearchHandlers) RebuildIndex(c *gin.Context) {
	if h.invalidator != nil {
		h.invalidator.RebuildSparseIndex()
	}
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}
