package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
	"tracklink/internal/services"
	"tracklink/internal/testutil"
)

type stubEngine struct {
	built []string
	err   error
}

func (s *stubEngine) GetOrBuild(ctx context.Context, src *models.TrackSource) (*models.Fingerprint, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.built = append(s.built, src.TrackID)
	return testutil.NewFingerprintBuilder().Build(), nil
}

type stubLinker struct {
	sweeps int
	merged int
}

func (s *stubLinker) Sweep(ctx context.Context) (int, error) {
	s.sweeps++
	return s.merged, nil
}

func TestSyncLibrary_ImportsAndFingerprintsTracks(t *testing.T) {
	spotify := testutil.NewMockPlatformService("spotify")
	youtube := testutil.NewMockPlatformService("youtube")
	f := newOrchestratorFixture(spotify, youtube)
	engine := &stubEngine{}
	linker := &stubLinker{}
	f.orch.engine = engine
	f.orch.linker = linker

	job := testutil.NewSyncJobBuilder().Build()
	infos := []*services.TrackInfo{
		testutil.NewTrackInfoBuilder().WithExternalID("sp-1").Build(),
		testutil.NewTrackInfoBuilder().WithExternalID("sp-2").Build(),
	}

	fingerprinted := testutil.NewTrackSourceBuilder().
		WithPlatform("spotify", "sp-1").
		WithFingerprint(testutil.NewFingerprintBuilder().Build().ID).
		Build()
	bare := testutil.NewTrackSourceBuilder().
		WithPlatform("spotify", "sp-2").
		Build()

	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusAnalyzing, "").Return(nil)
	f.sources.On("Upsert", mock.Anything, mock.MatchedBy(func(s *models.TrackSource) bool {
		return s.TrackID == "sp-1"
	})).Return(fingerprinted, nil)
	f.sources.On("Upsert", mock.Anything, mock.MatchedBy(func(s *models.TrackSource) bool {
		return s.TrackID == "sp-2"
	})).Return(bare, nil)
	spotify.On("GetPlaylistTracks", mock.Anything, job.Source, job.SourcePlaylistID).
		Return(infos, nil)
	f.syncs.On("UpdateJob", mock.Anything, job).Return(nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusReady, "").Return(nil)

	err := f.orch.SyncLibrary(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, job.TrackCount)
	assert.Equal(t, []string{"sp-2"}, engine.built, "only tracks without analysis are fingerprinted")
	assert.Equal(t, 1, linker.sweeps)
	f.syncs.AssertExpectations(t)
}

func TestSyncLibrary_StopRequestHaltsBetweenPhases(t *testing.T) {
	spotify := testutil.NewMockPlatformService("spotify")
	youtube := testutil.NewMockPlatformService("youtube")
	f := newOrchestratorFixture(spotify, youtube)
	engine := &stubEngine{}
	f.orch.engine = engine

	job := testutil.NewSyncJobBuilder().Build()
	infos := []*services.TrackInfo{testutil.NewTrackInfoBuilder().Build()}

	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusAnalyzing, "").Return(nil)
	spotify.On("GetPlaylistTracks", mock.Anything, job.Source, job.SourcePlaylistID).
		Return(infos, nil)
	f.sources.On("Upsert", mock.Anything, mock.Anything).
		Return(testutil.NewTrackSourceBuilder().Build(), nil)
	f.syncs.On("UpdateJob", mock.Anything, job).Return(nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusReady, "stopped by request").Return(nil)

	RequestStop(job.ID)
	err := f.orch.SyncLibrary(context.Background(), job.ID)

	require.ErrorIs(t, err, ErrStopped)
	assert.Empty(t, engine.built, "fingerprinting phase must not start after a stop")
	f.syncs.AssertExpectations(t)
}

func TestSyncLibrary_ImportFailureFailsJob(t *testing.T) {
	spotify := testutil.NewMockPlatformService("spotify")
	youtube := testutil.NewMockPlatformService("youtube")
	f := newOrchestratorFixture(spotify, youtube)

	job := testutil.NewSyncJobBuilder().Build()

	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusAnalyzing, "").Return(nil)
	spotify.On("GetPlaylistTracks", mock.Anything, job.Source, job.SourcePlaylistID).
		Return(nil, assert.AnError)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusFailed, mock.Anything).Return(nil)

	err := f.orch.SyncLibrary(context.Background(), job.ID)

	require.Error(t, err)
	f.syncs.AssertExpectations(t)
}

func TestSyncLibrary_FingerprintFailuresDoNotFailTheJob(t *testing.T) {
	spotify := testutil.NewMockPlatformService("spotify")
	youtube := testutil.NewMockPlatformService("youtube")
	f := newOrchestratorFixture(spotify, youtube)
	f.orch.engine = &stubEngine{err: assert.AnError}

	job := testutil.NewSyncJobBuilder().Build()
	infos := []*services.TrackInfo{testutil.NewTrackInfoBuilder().Build()}

	f.syncs.On("FindJobByID", mock.Anything, job.ID).Return(job, nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusAnalyzing, "").Return(nil)
	spotify.On("GetPlaylistTracks", mock.Anything, job.Source, job.SourcePlaylistID).
		Return(infos, nil)
	f.sources.On("Upsert", mock.Anything, mock.Anything).
		Return(testutil.NewTrackSourceBuilder().Build(), nil)
	f.syncs.On("UpdateJob", mock.Anything, job).Return(nil)
	f.syncs.On("SetJobStatus", mock.Anything, job.ID, models.JobStatusReady, "").Return(nil)

	err := f.orch.SyncLibrary(context.Background(), job.ID)

	require.NoError(t, err)
	f.syncs.AssertExpectations(t)
}
