package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
	"tracklink/internal/syncer"
)

// ConnectionRequest carries one side of a sync: the platform name and the
// ready-to-use access token for it.
type ConnectionRequest struct {
	Platform    string `json:"platform" binding:"required"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// CreateSyncRequest represents the request to create a sync job
type CreateSyncRequest struct {
	Source     ConnectionRequest `json:"source" binding:"required"`
	Target     ConnectionRequest `json:"target" binding:"required"`
	PlaylistID string            `json:"playlist_id" binding:"required"`
}

// SelectTrackRequest names the candidate to install as the match
type SelectTrackRequest struct {
	TargetTrackID string `json:"target_track_id" binding:"required"`
}

// ResolveURLRequest carries a pasted target-platform track URL
type ResolveURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// PushRequest optionally names the playlist to create on the target
type PushRequest struct {
	PlaylistName string `json:"playlist_name"`
}

// JobResponse is a job plus its entries
type JobResponse struct {
	Job    *models.SyncJob     `json:"job"`
	Tracks []*models.SyncTrack `json:"tracks"`
}

// SyncHandler exposes the sync engine over HTTP. Handlers stay thin: parse,
// delegate to the orchestrator or feedback service, serialize.
type SyncHandler struct {
	orchestrator *syncer.Orchestrator
	feedback     *syncer.Feedback
	syncs        repositories.SyncRepository
	registry     *services.Registry
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(orchestrator *syncer.Orchestrator, feedback *syncer.Feedback, syncs repositories.SyncRepository, registry *services.Registry) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		feedback:     feedback,
		syncs:        syncs,
		registry:     registry,
	}
}

// RegisterRoutes mounts every sync endpoint on the router
func (h *SyncHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/platforms", h.ListPlatforms)

		api.POST("/sync", h.CreateSync)
		api.GET("/sync/:id", h.GetSync)
		api.POST("/sync/:id/analyze", h.AnalyzeSync)
		api.POST("/sync/:id/library", h.SyncLibrary)
		api.POST("/sync/:id/stop", h.StopSync)
		api.POST("/sync/:id/confirm-all", h.ConfirmAll)
		api.POST("/sync/:id/push", h.PushSync)

		api.POST("/sync/:id/tracks/:tid/confirm", h.ConfirmTrack)
		api.POST("/sync/:id/tracks/:tid/reject", h.RejectTrack)
		api.POST("/sync/:id/tracks/:tid/select", h.SelectTrack)
		api.POST("/sync/:id/tracks/:tid/skip", h.SkipTrack)
		api.POST("/sync/:id/tracks/:tid/unconfirm", h.UnconfirmTrack)
		api.POST("/sync/:id/tracks/:tid/resolve-url", h.ResolveTrackURL)
		api.POST("/sync/:id/tracks/:tid/upload", h.UploadTrack)
	}
}

// ListPlatforms handles GET /api/platforms
func (h *SyncHandler) ListPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.registry.Platforms()})
}

// CreateSync handles POST /api/sync
func (h *SyncHandler) CreateSync(c *gin.Context) {
	var req CreateSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	job, err := h.orchestrator.CreateJob(c.Request.Context(),
		models.PlatformConnection{Platform: req.Source.Platform, AccessToken: req.Source.AccessToken, UserID: req.Source.UserID},
		models.PlatformConnection{Platform: req.Target.Platform, AccessToken: req.Target.AccessToken, UserID: req.Target.UserID},
		req.PlaylistID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to create sync job",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job})
}

// GetSync handles GET /api/sync/:id
func (h *SyncHandler) GetSync(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	job, err := h.syncs.FindJobByID(c.Request.Context(), jobID)
	if err != nil {
		slog.Error("Failed to load job", "jobId", jobID.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	tracks, err := h.syncs.FindTracksByJob(c.Request.Context(), jobID)
	if err != nil {
		slog.Error("Failed to load job entries", "jobId", jobID.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job entries"})
		return
	}

	c.JSON(http.StatusOK, JobResponse{Job: job, Tracks: tracks})
}

// AnalyzeSync handles POST /api/sync/:id/analyze. Analysis runs in the
// background; poll GET /api/sync/:id for progress.
func (h *SyncHandler) AnalyzeSync(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	go func() {
		if err := h.orchestrator.Analyze(context.Background(), jobID); err != nil {
			slog.Error("Analysis failed", "jobId", jobID.Hex(), "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID.Hex(), "status": models.JobStatusAnalyzing})
}

// SyncLibrary handles POST /api/sync/:id/library. Imports the playlist into
// the track store and fingerprints it, in the background.
func (h *SyncHandler) SyncLibrary(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	go func() {
		if err := h.orchestrator.SyncLibrary(context.Background(), jobID); err != nil {
			slog.Error("Library sync failed", "jobId", jobID.Hex(), "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID.Hex(), "status": models.JobStatusAnalyzing})
}

// StopSync handles POST /api/sync/:id/stop
func (h *SyncHandler) StopSync(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	syncer.RequestStop(jobID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID.Hex(), "stopping": true})
}

// ConfirmAll handles POST /api/sync/:id/confirm-all
func (h *SyncHandler) ConfirmAll(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	count, err := h.feedback.ConfirmAll(c.Request.Context(), jobID)
	if err != nil {
		slog.Error("Confirm-all failed", "jobId", jobID.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm entries", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmed": count})
}

// PushSync handles POST /api/sync/:id/push
func (h *SyncHandler) PushSync(c *gin.Context) {
	jobID, ok := h.objectID(c, c.Param("id"))
	if !ok {
		return
	}

	var req PushRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	job, err := h.orchestrator.Push(c.Request.Context(), jobID, req.PlaylistName)
	if err != nil {
		slog.Error("Push failed", "jobId", jobID.Hex(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Push failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// ConfirmTrack handles POST /api/sync/:id/tracks/:tid/confirm
func (h *SyncHandler) ConfirmTrack(c *gin.Context) {
	h.trackAction(c, h.feedback.Confirm)
}

// RejectTrack handles POST /api/sync/:id/tracks/:tid/reject
func (h *SyncHandler) RejectTrack(c *gin.Context) {
	h.trackAction(c, h.feedback.Reject)
}

// SkipTrack handles POST /api/sync/:id/tracks/:tid/skip
func (h *SyncHandler) SkipTrack(c *gin.Context) {
	h.trackAction(c, h.feedback.Skip)
}

// UnconfirmTrack handles POST /api/sync/:id/tracks/:tid/unconfirm
func (h *SyncHandler) UnconfirmTrack(c *gin.Context) {
	h.trackAction(c, h.feedback.Unconfirm)
}

// SelectTrack handles POST /api/sync/:id/tracks/:tid/select
func (h *SyncHandler) SelectTrack(c *gin.Context) {
	trackID, ok := h.objectID(c, c.Param("tid"))
	if !ok {
		return
	}

	var req SelectTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	entry, err := h.feedback.Select(c.Request.Context(), trackID, req.TargetTrackID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Select failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"track": entry})
}

// ResolveTrackURL handles POST /api/sync/:id/tracks/:tid/resolve-url
func (h *SyncHandler) ResolveTrackURL(c *gin.Context) {
	trackID, ok := h.objectID(c, c.Param("tid"))
	if !ok {
		return
	}

	var req ResolveURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	entry, err := h.feedback.ResolveURL(c.Request.Context(), trackID, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to resolve URL", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"track": entry})
}

// UploadTrack handles POST /api/sync/:id/tracks/:tid/upload
func (h *SyncHandler) UploadTrack(c *gin.Context) {
	trackID, ok := h.objectID(c, c.Param("tid"))
	if !ok {
		return
	}

	entry, err := h.orchestrator.Upload(c.Request.Context(), trackID)
	if err != nil {
		slog.Error("Upload failed", "trackId", trackID.Hex(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"track": entry})
}

// trackAction runs a feedback operation that needs only the entry id
func (h *SyncHandler) trackAction(c *gin.Context, action func(context.Context, primitive.ObjectID) (*models.SyncTrack, error)) {
	trackID, ok := h.objectID(c, c.Param("tid"))
	if !ok {
		return
	}

	entry, err := action(c.Request.Context(), trackID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Operation failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"track": entry})
}

func (h *SyncHandler) objectID(c *gin.Context, raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id", "details": raw})
		return primitive.NilObjectID, false
	}
	return id, true
}
