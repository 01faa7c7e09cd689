package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
	"tracklink/internal/testutil"
)

type stubFetcher struct {
	path  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, src *models.TrackSource) (string, error) {
	s.calls++
	return s.path, s.err
}

type stubDecoder struct {
	samples []float64
	err     error
}

func (s *stubDecoder) Decode(ctx context.Context, path string, maxSeconds int) ([]float64, error) {
	return s.samples, s.err
}

type stubChromaprinter struct {
	result *ChromaprintResult
	err    error
}

func (s *stubChromaprinter) Compute(ctx context.Context, audioPath string) (*ChromaprintResult, error) {
	return s.result, s.err
}

type stubResolver struct {
	mbid  string
	score float64
	err   error
}

func (s *stubResolver) LookupMBID(ctx context.Context, fp string, durationSec float64) (string, float64, error) {
	return s.mbid, s.score, s.err
}

type stubFeatures struct {
	features *Features
}

func (s *stubFeatures) LowLevel(ctx context.Context, mbid string) (*Features, error) {
	return s.features, nil
}

type stubISRCs struct {
	codes []string
}

func (s *stubISRCs) RecordingISRCs(ctx context.Context, mbid string) ([]string, error) {
	return s.codes, nil
}

type stubRecognizer struct {
	rec *Recognition
}

func (s *stubRecognizer) Recognize(ctx context.Context, audioPath string) *Recognition {
	return s.rec
}

func TestGetOrBuild_FreshRecordReturnedWithoutWork(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)
	fetcher := &stubFetcher{path: "/tmp/a.m4a"}

	fp := testutil.NewFingerprintBuilder().WithMBID("mbid-1").Build()
	src := testutil.NewTrackSourceBuilder().WithFingerprint(fp.ID).Build()

	fps.On("FindByID", mock.Anything, fp.ID).Return(fp, nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      fetcher,
		Decoder:      &stubDecoder{},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	assert.Equal(t, fp, got)
	assert.Zero(t, fetcher.calls, "fresh record must not trigger a download")
	fps.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestGetOrBuild_IdentifiedTrackJoinsCanonicalRecord(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)

	canonical := testutil.NewFingerprintBuilder().WithMBID("mbid-1").Build()
	src := testutil.NewTrackSourceBuilder().Build()
	src.ID = canonical.ID // any non-zero id
	src.FingerprintID = nil

	fps.On("GetOrCreateByMBID", mock.Anything, "mbid-1", models.FingerprintSourceAcoustID).
		Return(canonical, nil)
	fps.On("Update", mock.Anything, canonical).Return(nil)
	sources.On("SetFingerprint", mock.Anything, src.ID, canonical.ID).Return(nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      &stubFetcher{path: "/tmp/a.m4a"},
		Decoder:      &stubDecoder{},
		Fpcalc:       &stubChromaprinter{result: &ChromaprintResult{Fingerprint: "AQAA", Duration: 245}},
		AcoustID:     &stubResolver{mbid: "mbid-1", score: 0.93},
		Features:     &stubFeatures{features: &Features{BPM: 128, Key: "A", Mode: "minor"}},
		ISRCs:        &stubISRCs{codes: []string{testutil.TestISRC1}},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mbid-1", got.MBID)
	assert.Equal(t, 128.0, got.BPM)
	assert.Equal(t, "A", got.Key)
	assert.Equal(t, "minor", got.Mode)
	assert.Contains(t, got.ISRCs, testutil.TestISRC1)
	assert.Equal(t, "AQAA", got.Chromaprint)
	assert.Equal(t, models.CurrentAlgoVersion, got.AlgoVersion)
	sources.AssertExpectations(t)
}

func TestGetOrBuild_ChromaprintKeptWhenLookupFails(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)

	src := testutil.NewTrackSourceBuilder().Build()
	src.ID = testutil.NewFingerprintBuilder().Build().ID

	fps.On("Save", mock.Anything, mock.Anything).Return(nil)
	fps.On("Update", mock.Anything, mock.Anything).Return(nil)
	sources.On("SetFingerprint", mock.Anything, src.ID, mock.Anything).Return(nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      &stubFetcher{path: "/tmp/a.m4a"},
		Decoder:      &stubDecoder{},
		Fpcalc:       &stubChromaprinter{result: &ChromaprintResult{Fingerprint: "AQAA", Duration: 245}},
		AcoustID:     &stubResolver{err: assert.AnError},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.MBID)
	assert.Equal(t, "AQAA", got.Chromaprint)
}

func TestGetOrBuild_UnidentifiedTrackGetsLocalOnlyRecord(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)

	src := testutil.NewTrackSourceBuilder().Build()
	src.ID = testutil.NewFingerprintBuilder().Build().ID

	fps.On("Save", mock.Anything, mock.MatchedBy(func(fp *models.Fingerprint) bool {
		return fp.Source == models.FingerprintSourceLocalOnly
	})).Return(nil)
	fps.On("Update", mock.Anything, mock.Anything).Return(nil)
	sources.On("SetFingerprint", mock.Anything, src.ID, mock.Anything).Return(nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      &stubFetcher{path: "/tmp/a.m4a"},
		Decoder:      &stubDecoder{samples: make([]float64, 4096)},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.MBID)
	assert.Equal(t, models.FingerprintSourceLocalOnly, got.Source)
	// too little audio for key detection, tempo falls back to the default
	assert.Equal(t, 120.0, got.BPM)
	fps.AssertExpectations(t)
}

func TestGetOrBuild_RecognitionFillsOnlyEmptyFields(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)

	stale := testutil.NewFingerprintBuilder().
		WithMBID("mbid-1").
		WithBPM(128).
		WithKey("A", "minor").
		WithAlgoVersion(models.CurrentAlgoVersion - 1).
		Build()
	stale.ShazamTitle = "Existing Title"
	src := testutil.NewTrackSourceBuilder().WithFingerprint(stale.ID).Build()
	src.ID = stale.ID

	fps.On("FindByID", mock.Anything, stale.ID).Return(stale, nil)
	fps.On("GetOrCreateByMBID", mock.Anything, "mbid-1", models.FingerprintSourceAcoustID).
		Return(stale, nil)
	fps.On("Update", mock.Anything, stale).Return(nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      &stubFetcher{path: "/tmp/a.m4a"},
		Decoder:      &stubDecoder{},
		Fpcalc:       &stubChromaprinter{result: &ChromaprintResult{Fingerprint: "AQAA", Duration: 245}},
		AcoustID:     &stubResolver{mbid: "mbid-1", score: 0.95},
		Recognizer: &stubRecognizer{rec: &Recognition{
			ID:     "shz-1",
			Title:  "New Title",
			Artist: "New Artist",
		}},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "shz-1", got.ShazamID)
	assert.Equal(t, "Existing Title", got.ShazamTitle, "populated fields are never overwritten")
	assert.Equal(t, "New Artist", got.ShazamArtist)
	assert.Equal(t, models.CurrentAlgoVersion, got.AlgoVersion)
}

func TestGetOrBuild_DownloadFailureKeepsStaleRecord(t *testing.T) {
	fps := new(testutil.MockFingerprintRepository)
	sources := new(testutil.MockTrackSourceRepository)
	localFPs := new(testutil.MockLocalFingerprintRepository)

	stale := testutil.NewFingerprintBuilder().
		WithMBID("mbid-1").
		WithAlgoVersion(models.CurrentAlgoVersion - 1).
		Build()
	src := testutil.NewTrackSourceBuilder().WithFingerprint(stale.ID).Build()

	fps.On("FindByID", mock.Anything, stale.ID).Return(stale, nil)

	engine := NewEngine(EngineDeps{
		Fingerprints: fps,
		LocalFPs:     localFPs,
		Sources:      sources,
		Fetcher:      &stubFetcher{err: assert.AnError},
		Decoder:      &stubDecoder{},
	})

	got, err := engine.GetOrBuild(context.Background(), src)

	require.NoError(t, err)
	assert.Equal(t, stale, got)
}
