package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// AdminHandler serves health and store statistics
type AdminHandler struct {
	database *models.Database
	registry *services.Registry
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(database *models.Database, registry *services.Registry) *AdminHandler {
	return &AdminHandler{
		database: database,
		registry: registry,
	}
}

// StoreStats represents track-store statistics
type StoreStats struct {
	DatabaseName   string            `json:"database_name"`
	TotalSizeMB    float64           `json:"total_size_mb"`
	StorageSizeMB  float64           `json:"storage_size_mb"`
	IndexSizeMB    float64           `json:"index_size_mb"`
	TotalDocuments int64             `json:"total_documents"`
	Collections    []CollectionStats `json:"collections"`
	LastUpdated    time.Time         `json:"last_updated"`
}

// CollectionStats represents statistics for a single collection
type CollectionStats struct {
	Name        string  `json:"name"`
	Documents   int64   `json:"documents"`
	DataSizeMB  float64 `json:"data_size_mb"`
	IndexSizeMB float64 `json:"index_size_mb"`
}

// RegisterRoutes mounts the health and stats endpoints
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/api/admin/db-stats", h.GetStoreStats)
}

// Health handles GET /health: liveness plus a store ping and the configured
// platform list.
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	store := "ok"
	if h.database != nil {
		if err := h.database.Client.Ping(ctx, nil); err != nil {
			slog.Error("Store ping failed", "error", err)
			status = http.StatusServiceUnavailable
			overall = "degraded"
			store = err.Error()
		}
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"store":     store,
		"platforms": h.registry.Platforms(),
	})
}

// GetStoreStats handles GET /api/admin/db-stats
func (h *AdminHandler) GetStoreStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	stats, err := h.collectStoreStats(ctx)
	if err != nil {
		slog.Error("Failed to collect store stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to collect store statistics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) collectStoreStats(ctx context.Context) (*StoreStats, error) {
	database := h.database.DB

	var dbStats bson.M
	if err := database.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err != nil {
		return nil, fmt.Errorf("getting database stats: %w", err)
	}

	stats := &StoreStats{
		DatabaseName: database.Name(),
		LastUpdated:  time.Now(),
	}
	stats.TotalSizeMB = toMB(dbStats["dataSize"])
	stats.StorageSizeMB = toMB(dbStats["storageSize"])
	stats.IndexSizeMB = toMB(dbStats["indexSize"])
	if objects, ok := asInt64(dbStats["objects"]); ok {
		stats.TotalDocuments = objects
	}

	collections, err := database.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	for _, collName := range collections {
		var collStats bson.M
		if err := database.RunCommand(ctx, bson.D{{Key: "collStats", Value: collName}}).Decode(&collStats); err != nil {
			slog.Warn("Failed to get collection stats", "collection", collName, "error", err)
			continue
		}

		cs := CollectionStats{Name: collName}
		if count, ok := asInt64(collStats["count"]); ok {
			cs.Documents = count
		}
		cs.DataSizeMB = toMB(collStats["size"])
		cs.IndexSizeMB = toMB(collStats["totalIndexSize"])
		stats.Collections = append(stats.Collections, cs)
	}

	return stats, nil
}

// asInt64 tolerates the int32/int64/float64 variants mongo returns for
// numeric stats fields.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toMB(v interface{}) float64 {
	n, ok := asInt64(v)
	if !ok {
		return 0
	}
	return float64(n) / 1024 / 1024
}
