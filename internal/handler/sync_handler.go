package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// SyncHandler exposes the reconciliation preview/apply/status endpoints.
type SyncHandler struct {
	syncService *service.SyncService
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Preview computes the diff/match sets without writing. Safe to call
// repeatedly and concurrently.
func (h *SyncHandler) Preview(c *gin.Context) {
	var (
		result *service.SyncResult
		err    error
	)
	switch c.DefaultQuery("source", "catalog") {
	case "catalog":
		result, err = h.syncService.PreviewCatalog(c.Request.Context())
	case "marketplace":
		result, err = h.syncService.PreviewMarketplace(c.Request.Context())
	default:
		utils.Error(c, 400, "INVALID_SOURCE", "source must be catalog or marketplace")
		return
	}
	if err != nil {
		h.writeSyncError(c, err)
		return
	}
	utils.Success(c, 200, "Preview computed", result)
}

// Apply runs the reconciliation with writes.
func (h *SyncHandler) Apply(c *gin.Context) {
	opts := service.SyncOptions{
		Force:        c.Query("force") == "true",
		CleanOldData: c.Query("clean") == "true",
	}

	var (
		result *service.SyncResult
		err    error
	)
	switch c.DefaultQuery("source", "catalog") {
	case "catalog":
		result, err = h.syncService.ApplyCatalog(c.Request.Context(), opts)
	case "marketplace":
		result, err = h.syncService.ApplyMarketplace(c.Request.Context(), opts)
	default:
		utils.Error(c, 400, "INVALID_SOURCE", "source must be catalog or marketplace")
		return
	}
	if err != nil && (result == nil || !result.Success()) {
		h.writeSyncError(c, err)
		return
	}
	utils.Success(c, 200, "Sync applied", result)
}

// Status returns the most recent sync log rows.
func (h *SyncHandler) Status(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.syncService.Status(c.Request.Context(), limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load sync status")
		return
	}
	utils.Success(c, 200, "Sync status retrieved", gin.H{"syncs": logs})
}

func (h *SyncHandler) writeSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrRecentlySynced):
		utils.Error(c, 409, "RECENTLY_SYNCED", err.Error())
	case errors.Is(err, utils.ErrFeedUnreachable):
		utils.Error(c, 502, "FEED_UNREACHABLE", err.Error())
	default:
		utils.Error(c, 500, "SYNC_FAILED", err.Error())
	}
}
