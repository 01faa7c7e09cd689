package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// MockTrackSourceRepository is a mock implementation of TrackSourceRepository
type MockTrackSourceRepository struct {
	mock.Mock
}

func (m *MockTrackSourceRepository) Upsert(ctx context.Context, src *models.TrackSource) (*models.TrackSource, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackSource), args.Error(1)
}

func (m *MockTrackSourceRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.TrackSource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackSource), args.Error(1)
}

func (m *MockTrackSourceRepository) FindByPlatformID(ctx context.Context, platform, trackID string) (*models.TrackSource, error) {
	args := m.Called(ctx, platform, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackSource), args.Error(1)
}

func (m *MockTrackSourceRepository) FindByFingerprintID(ctx context.Context, fingerprintID primitive.ObjectID) ([]*models.TrackSource, error) {
	args := m.Called(ctx, fingerprintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackSource), args.Error(1)
}

func (m *MockTrackSourceRepository) FindFingerprinted(ctx context.Context) ([]*models.TrackSource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackSource), args.Error(1)
}

func (m *MockTrackSourceRepository) SetFingerprint(ctx context.Context, id, fingerprintID primitive.ObjectID) error {
	args := m.Called(ctx, id, fingerprintID)
	return args.Error(0)
}

func (m *MockTrackSourceRepository) ReassignFingerprint(ctx context.Context, from, to primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTrackSourceRepository) SetCachedAudio(ctx context.Context, id primitive.ObjectID, path, format string, size int64) error {
	args := m.Called(ctx, id, path, format, size)
	return args.Error(0)
}

// MockFingerprintRepository is a mock implementation of FingerprintRepository
type MockFingerprintRepository struct {
	mock.Mock
}

func (m *MockFingerprintRepository) Save(ctx context.Context, fp *models.Fingerprint) error {
	args := m.Called(ctx, fp)
	return args.Error(0)
}

func (m *MockFingerprintRepository) Update(ctx context.Context, fp *models.Fingerprint) error {
	args := m.Called(ctx, fp)
	return args.Error(0)
}

func (m *MockFingerprintRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fingerprint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fingerprint), args.Error(1)
}

func (m *MockFingerprintRepository) FindByMBID(ctx context.Context, mbid string) (*models.Fingerprint, error) {
	args := m.Called(ctx, mbid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fingerprint), args.Error(1)
}

func (m *MockFingerprintRepository) FindByShazamID(ctx context.Context, shazamID string) (*models.Fingerprint, error) {
	args := m.Called(ctx, shazamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fingerprint), args.Error(1)
}

func (m *MockFingerprintRepository) FindByISRC(ctx context.Context, isrc string) (*models.Fingerprint, error) {
	args := m.Called(ctx, isrc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fingerprint), args.Error(1)
}

func (m *MockFingerprintRepository) GetOrCreateByMBID(ctx context.Context, mbid, source string) (*models.Fingerprint, error) {
	args := m.Called(ctx, mbid, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fingerprint), args.Error(1)
}

func (m *MockFingerprintRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFingerprintRepository) RecordMatch(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLocalFingerprintRepository is a mock implementation of LocalFingerprintRepository
type MockLocalFingerprintRepository struct {
	mock.Mock
}

func (m *MockLocalFingerprintRepository) Save(ctx context.Context, fp *models.LocalFingerprint) error {
	args := m.Called(ctx, fp)
	return args.Error(0)
}

func (m *MockLocalFingerprintRepository) FindByTrackSourceID(ctx context.Context, trackSourceID primitive.ObjectID) (*models.LocalFingerprint, error) {
	args := m.Called(ctx, trackSourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LocalFingerprint), args.Error(1)
}

// MockSyncRepository is a mock implementation of SyncRepository
type MockSyncRepository struct {
	mock.Mock
}

func (m *MockSyncRepository) SaveJob(ctx context.Context, job *models.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockSyncRepository) UpdateJob(ctx context.Context, job *models.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockSyncRepository) FindJobByID(ctx context.Context, id primitive.ObjectID) (*models.SyncJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}

func (m *MockSyncRepository) SetJobStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockSyncRepository) SaveTrack(ctx context.Context, track *models.SyncTrack) error {
	args := m.Called(ctx, track)
	return args.Error(0)
}

func (m *MockSyncRepository) UpdateTrack(ctx context.Context, track *models.SyncTrack) error {
	args := m.Called(ctx, track)
	return args.Error(0)
}

func (m *MockSyncRepository) FindTrackByID(ctx context.Context, id primitive.ObjectID) (*models.SyncTrack, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncTrack), args.Error(1)
}

func (m *MockSyncRepository) FindTracksByJob(ctx context.Context, jobID primitive.ObjectID) ([]*models.SyncTrack, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncTrack), args.Error(1)
}

func (m *MockSyncRepository) DeleteTracksByJob(ctx context.Context, jobID primitive.ObjectID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockSyncRepository) FindConfirmedMatch(ctx context.Context, sourcePlatform, sourceTrackID, targetPlatform string) (*models.SyncTrack, error) {
	args := m.Called(ctx, sourcePlatform, sourceTrackID, targetPlatform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncTrack), args.Error(1)
}

// MockPlatformService is a mock implementation of PlatformService for testing
type MockPlatformService struct {
	mock.Mock
	platformName string
}

func NewMockPlatformService(platformName string) *MockPlatformService {
	return &MockPlatformService{platformName: platformName}
}

func (m *MockPlatformService) GetPlatformName() string {
	return m.platformName
}

func (m *MockPlatformService) ParseURL(url string) (*services.TrackInfo, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrackInfo), args.Error(1)
}

func (m *MockPlatformService) GetTrackByID(ctx context.Context, trackID string) (*services.TrackInfo, error) {
	args := m.Called(ctx, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrackInfo), args.Error(1)
}

func (m *MockPlatformService) SearchTrack(ctx context.Context, query services.SearchQuery) ([]*services.TrackInfo, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.TrackInfo), args.Error(1)
}

func (m *MockPlatformService) GetPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string) ([]*services.TrackInfo, error) {
	args := m.Called(ctx, conn, playlistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.TrackInfo), args.Error(1)
}

func (m *MockPlatformService) CreatePlaylist(ctx context.Context, conn models.PlatformConnection, name string) (string, error) {
	args := m.Called(ctx, conn, name)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformService) AddPlaylistTracks(ctx context.Context, conn models.PlatformConnection, playlistID string, trackIDs []string) error {
	args := m.Called(ctx, conn, playlistID, trackIDs)
	return args.Error(0)
}

func (m *MockPlatformService) BuildURL(trackID string) string {
	return "https://" + m.platformName + ".example/" + trackID
}

func (m *MockPlatformService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockUploader is a MockPlatformService that also accepts uploads
type MockUploader struct {
	MockPlatformService
}

func NewMockUploader(platformName string) *MockUploader {
	uploader := &MockUploader{}
	uploader.platformName = platformName
	return uploader
}

func (m *MockUploader) UploadTrack(ctx context.Context, conn models.PlatformConnection, title, artist, audioPath string) (*services.TrackInfo, error) {
	args := m.Called(ctx, conn, title, artist, audioPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrackInfo), args.Error(1)
}
