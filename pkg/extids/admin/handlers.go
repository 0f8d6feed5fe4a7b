package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/extids/pkg/extids/models"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// SystemCount is the number of links pointing at one system
type SystemCount struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Links    int64  `json:"links"`
	Archived int64  `json:"archived"`
}

// RecordTypeCount is the number of links held by one record type
type RecordTypeCount struct {
	RecordType string `json:"record_type"`
	Links      int64  `json:"links"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalSystems        int64             `json:"total_systems"`
	ArchivedSystems     int64             `json:"archived_systems"`
	TotalExternalIDs    int64             `json:"total_external_ids"`
	ActiveExternalIDs   int64             `json:"active_external_ids"`
	ArchivedExternalIDs int64             `json:"archived_external_ids"`
	NeverSynced         int64             `json:"never_synced"`
	TotalTemplates      int64             `json:"total_templates"`
	TotalClients        int64             `json:"total_clients"`
	AdminClients        int64             `json:"admin_clients"`
	BySystem            []SystemCount     `json:"by_system"`
	ByRecordType        []RecordTypeCount `json:"by_record_type"`
}

// Collect gathers statistics across all rows, ignoring visibility
func Collect(ctx context.Context, db *gorm.DB) (*StatsResponse, error) {
	db = db.WithContext(ctx)
	var stats StatsResponse

	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.ExternalSystem{}), &stats.TotalSystems},
		{db.Model(&models.ExternalSystem{}).Where("active = ?", false), &stats.ArchivedSystems},
		{db.Model(&models.ExternalID{}), &stats.TotalExternalIDs},
		{db.Model(&models.ExternalID{}).Where("active = ?", true), &stats.ActiveExternalIDs},
		{db.Model(&models.ExternalID{}).Where("active = ?", false), &stats.ArchivedExternalIDs},
		{db.Model(&models.ExternalID{}).Where("last_sync IS NULL"), &stats.NeverSynced},
		{db.Model(&models.ExternalSystemURL{}), &stats.TotalTemplates},
		{db.Model(&models.APIClient{}), &stats.TotalClients},
		{db.Model(&models.APIClient{}).Where("role = ?", models.ClientRoleAdmin), &stats.AdminClients},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	stats.BySystem = []SystemCount{}
	err := db.Model(&models.ExternalSystem{}).
		Select(`external_systems.code, external_systems.name, external_systems.active,
			COUNT(external_ids.id) AS links,
			COALESCE(SUM(CASE WHEN external_ids.active = 0 THEN 1 ELSE 0 END), 0) AS archived`).
		Joins("LEFT JOIN external_ids ON external_ids.system_id = external_systems.id").
		Group("external_systems.id").
		Order("external_systems.sequence, external_systems.name").
		Scan(&stats.BySystem).Error
	if err != nil {
		return nil, err
	}

	stats.ByRecordType = []RecordTypeCount{}
	err = db.Model(&models.ExternalID{}).
		Select("record_type, COUNT(*) AS links").
		Group("record_type").
		Order("record_type").
		Scan(&stats.ByRecordType).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetStats returns system-wide statistics (admin only)
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := Collect(c.Request.Context(), h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
}
