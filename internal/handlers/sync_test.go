package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/config"
	"tracklink/internal/matching"
	"tracklink/internal/models"
	"tracklink/internal/services"
	"tracklink/internal/syncer"
	"tracklink/internal/testutil"
)

type handlerFixture struct {
	helper   *testutil.HTTPTestHelper
	syncs    *testutil.MockSyncRepository
	registry *services.Registry
}

func newHandlerFixture(t *testing.T, platforms ...*testutil.MockPlatformService) *handlerFixture {
	f := &handlerFixture{
		helper:   testutil.NewHTTPTestHelper(t),
		syncs:    new(testutil.MockSyncRepository),
		registry: services.NewRegistry(),
	}
	for _, p := range platforms {
		f.registry.Register(p)
	}

	scorer := matching.NewScorer(config.DefaultScoringConfig())
	searcher := matching.NewSearcher(scorer, nil)
	orchestrator := syncer.NewOrchestrator(syncer.OrchestratorDeps{
		Registry:     f.registry,
		Searcher:     searcher,
		Scorer:       scorer,
		Syncs:        f.syncs,
		Sources:      new(testutil.MockTrackSourceRepository),
		Fingerprints: new(testutil.MockFingerprintRepository),
		LocalFPs:     new(testutil.MockLocalFingerprintRepository),
	})
	feedback := syncer.NewFeedback(f.syncs, nil, nil, f.registry, searcher, scorer)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSyncHandler(orchestrator, feedback, f.syncs, f.registry).RegisterRoutes(router)
	NewAdminHandler(nil, f.registry).RegisterRoutes(router)
	f.helper.SetRouter(router)
	return f
}

func TestListPlatforms(t *testing.T) {
	f := newHandlerFixture(t,
		testutil.NewMockPlatformService("spotify"),
		testutil.NewMockPlatformService("youtube"))

	recorder := f.helper.GetJSON("/api/platforms")

	var resp struct {
		Platforms []string `json:"platforms"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, []string{"spotify", "youtube"}, resp.Platforms)
}

func TestCreateSync(t *testing.T) {
	f := newHandlerFixture(t,
		testutil.NewMockPlatformService("spotify"),
		testutil.NewMockPlatformService("youtube"))

	f.syncs.On("SaveJob", mock.Anything, mock.Anything).Return(nil)

	recorder := f.helper.PostJSON("/api/sync", CreateSyncRequest{
		Source:     ConnectionRequest{Platform: "spotify", AccessToken: "src-token"},
		Target:     ConnectionRequest{Platform: "youtube", AccessToken: "tgt-token"},
		PlaylistID: "playlist-1",
	})

	var resp struct {
		Job *models.SyncJob `json:"job"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusCreated, &resp)
	assert.Equal(t, models.JobStatusPending, resp.Job.Status)
	assert.Equal(t, "playlist-1", resp.Job.SourcePlaylistID)
}

func TestCreateSync_UnknownPlatform(t *testing.T) {
	f := newHandlerFixture(t, testutil.NewMockPlatformService("spotify"))

	recorder := f.helper.PostJSON("/api/sync", CreateSyncRequest{
		Source:     ConnectionRequest{Platform: "spotify"},
		Target:     ConnectionRequest{Platform: "tidal"},
		PlaylistID: "playlist-1",
	})

	f.helper.AssertErrorResponse(recorder, http.StatusBadRequest, "Failed to create sync job")
	f.syncs.AssertNotCalled(t, "SaveJob", mock.Anything, mock.Anything)
}

func TestCreateSync_MissingBody(t *testing.T) {
	f := newHandlerFixture(t)

	recorder := f.helper.PostJSON("/api/sync", map[string]string{})

	f.helper.AssertErrorResponse(recorder, http.StatusBadRequest, "Invalid request body")
}

func TestGetSync(t *testing.T) {
	f := newHandlerFixture(t)

	job := testutil.NewSyncJobBuilder().WithStatus(models.JobStatusReady).Build()
	entry := testutil.NewSyncTrackBuilder(job, 0).
		WithMatch(testutil.YouTubeVideoID1, "Runaway", 0.95, models.TrackStatusMatched).
		Build()

	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)
	f.syncs.On("FindTracksByJob", mock.Anything, job.ID).
		Return([]*models.SyncTrack{entry}, nil)

	recorder := f.helper.GetJSON("/api/sync/" + job.ID.Hex())

	var resp JobResponse
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, models.JobStatusReady, resp.Job.Status)
	assert.Len(t, resp.Tracks, 1)
	assert.Equal(t, testutil.YouTubeVideoID1, resp.Tracks[0].TargetTrackID)
}

func TestGetSync_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	missing := primitive.NewObjectID()
	f.syncs.On("FindJobByID", mock.Anything, missing).Return(nil, nil)

	recorder := f.helper.GetJSON("/api/sync/" + missing.Hex())

	f.helper.AssertErrorResponse(recorder, http.StatusNotFound, "Job not found")
}

func TestGetSync_MalformedID(t *testing.T) {
	f := newHandlerFixture(t)

	recorder := f.helper.GetJSON("/api/sync/not-an-object-id")

	f.helper.AssertErrorResponse(recorder, http.StatusBadRequest, "Invalid id")
}

func TestConfirmTrack(t *testing.T) {
	f := newHandlerFixture(t)

	job := testutil.NewSyncJobBuilder().Build()
	entry := testutil.NewSyncTrackBuilder(job, 0).
		WithMatch(testutil.YouTubeVideoID1, "Runaway", 0.72, models.TrackStatusUncertain).
		Build()

	f.syncs.On("FindTrackByID", mock.Anything, entry.ID).Return(entry, nil)
	f.syncs.On("UpdateTrack", mock.Anything, entry).Return(nil)

	recorder := f.helper.PostJSON("/api/sync/"+job.ID.Hex()+"/tracks/"+entry.ID.Hex()+"/confirm", nil)

	var resp struct {
		Track *models.SyncTrack `json:"track"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, models.FeedbackConfirmed, resp.Track.Feedback)
}

func TestSelectTrack(t *testing.T) {
	f := newHandlerFixture(t)

	job := testutil.NewSyncJobBuilder().Build()
	entry := testutil.NewSyncTrackBuilder(job, 0).
		WithMatch("yt-auto", "Runaway", 0.70, models.TrackStatusUncertain).
		WithAlternatives(models.Alternative{TrackID: "yt-alt", Title: "Runaway", Confidence: 0.64}).
		Build()

	f.syncs.On("FindTrackByID", mock.Anything, entry.ID).Return(entry, nil)
	f.syncs.On("UpdateTrack", mock.Anything, entry).Return(nil)

	recorder := f.helper.PostJSON(
		"/api/sync/"+job.ID.Hex()+"/tracks/"+entry.ID.Hex()+"/select",
		SelectTrackRequest{TargetTrackID: "yt-alt"})

	var resp struct {
		Track *models.SyncTrack `json:"track"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, "yt-alt", resp.Track.TargetTrackID)
	assert.Equal(t, models.TrackStatusMatched, resp.Track.Status)
}

func TestConfirmAll(t *testing.T) {
	f := newHandlerFixture(t)

	job := testutil.NewSyncJobBuilder().Build()
	entry := testutil.NewSyncTrackBuilder(job, 0).
		WithMatch("yt-1", "Runaway", 0.70, models.TrackStatusUncertain).
		Build()

	f.syncs.On("FindTracksByJob", mock.Anything, job.ID).
		Return([]*models.SyncTrack{entry}, nil)
	f.syncs.On("UpdateTrack", mock.Anything, entry).Return(nil)

	recorder := f.helper.PostJSON("/api/sync/"+job.ID.Hex()+"/confirm-all", nil)

	var resp struct {
		Confirmed int `json:"confirmed"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, 1, resp.Confirmed)
}

func TestPushSync_WrongStatus(t *testing.T) {
	f := newHandlerFixture(t,
		testutil.NewMockPlatformService("spotify"),
		testutil.NewMockPlatformService("youtube"))

	job := testutil.NewSyncJobBuilder().WithStatus(models.JobStatusPending).Build()
	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)

	recorder := f.helper.PostJSON("/api/sync/"+job.ID.Hex()+"/push", nil)

	f.helper.AssertErrorResponse(recorder, http.StatusBadRequest, "Push failed")
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(t, testutil.NewMockPlatformService("spotify"))

	recorder := f.helper.GetJSON("/health")

	var resp struct {
		Status    string   `json:"status"`
		Platforms []string `json:"platforms"`
	}
	f.helper.AssertJSONResponse(recorder, http.StatusOK, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"spotify"}, resp.Platforms)
}
