package documentary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/jobs"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
	"github.com/ternarybob/musicdoc/internal/storage/badger"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) SearchArtist(ctx context.Context, query, accessToken string) (*models.Artist, error) {
	args := m.Called(ctx, query, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Artist), args.Error(1)
}

func (m *MockCatalog) GetTopTracks(ctx context.Context, artistID, market, accessToken string) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, artistID, market, accessToken)
	tracks, _ := args.Get(0).([]models.CatalogTrack)
	return tracks, args.Error(1)
}

func (m *MockCatalog) SearchTrack(ctx context.Context, query, market, accessToken string, limit int) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, query, market, accessToken, limit)
	tracks, _ := args.Get(0).([]models.CatalogTrack)
	return tracks, args.Error(1)
}

func (m *MockCatalog) ListAlbums(ctx context.Context, artistID, market, accessToken string, limit, offset int) ([]models.Album, error) {
	args := m.Called(ctx, artistID, market, accessToken, limit, offset)
	albums, _ := args.Get(0).([]models.Album)
	return albums, args.Error(1)
}

func (m *MockCatalog) GetAlbumTracks(ctx context.Context, album models.Album, market, accessToken string) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, album, market, accessToken)
	tracks, _ := args.Get(0).([]models.CatalogTrack)
	return tracks, args.Error(1)
}

func (m *MockCatalog) SearchRequiredTracks(ctx context.Context, required []models.RequiredTrack, artistName, market, accessToken string) ([]models.RequiredTrackMatch, error) {
	args := m.Called(ctx, required, artistName, market, accessToken)
	matches, _ := args.Get(0).([]models.RequiredTrackMatch)
	return matches, args.Error(1)
}

func (m *MockCatalog) FetchArtistCatalog(ctx context.Context, artistID, market, accessToken string, desiredCount int) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, artistID, market, accessToken, desiredCount)
	tracks, _ := args.Get(0).([]models.CatalogTrack)
	return tracks, args.Error(1)
}

type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, artistName string, topTracks []models.CatalogTrack, userPrompt string) (*models.DocumentaryPlan, error) {
	args := m.Called(ctx, artistName, topTracks, userPrompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DocumentaryPlan), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req interfaces.GenerateRequest) (*models.Documentary, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Documentary), args.Error(1)
}

type MockNarration struct {
	mock.Mock
}

func (m *MockNarration) SynthesizeBatch(ctx context.Context, texts []string, opts interfaces.BatchOptions) ([]*string, error) {
	args := m.Called(ctx, texts, opts)
	urls, _ := args.Get(0).([]*string)
	return urls, args.Error(1)
}

type MockPlaylistStorage struct {
	mock.Mock
}

func (m *MockPlaylistStorage) Save(ctx context.Context, playlist *models.Playlist) (*models.Playlist, error) {
	args := m.Called(ctx, playlist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Playlist), args.Error(1)
}

func (m *MockPlaylistStorage) Get(ctx context.Context, id string) (*models.Playlist, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Playlist), args.Error(1)
}

func (m *MockPlaylistStorage) Update(ctx context.Context, id string, update models.PlaylistUpdate) (*models.Playlist, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Playlist), args.Error(1)
}

func (m *MockPlaylistStorage) ListByOwner(ctx context.Context, ownerID string) ([]*models.Playlist, error) {
	args := m.Called(ctx, ownerID)
	list, _ := args.Get(0).([]*models.Playlist)
	return list, args.Error(1)
}

func (m *MockPlaylistStorage) Close() error {
	return m.Called().Error(0)
}

// recordingTracker keeps every progress update the pipeline sends
type recordingTracker struct {
	*jobs.Manager
	mu      sync.Mutex
	updates []models.ProgressUpdate
}

func (r *recordingTracker) UpdateProgress(jobID string, update models.ProgressUpdate) error {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
	return r.Manager.UpdateProgress(jobID, update)
}

func (r *recordingTracker) details(stage int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		if u.Stage == stage {
			out = append(out, u.Detail)
		}
	}
	return out
}

type fixture struct {
	svc       *Service
	jobs      *jobs.Manager
	catalog   *MockCatalog
	planner   *MockPlanner
	generator *MockGenerator
	narration *MockNarration
	playlists interfaces.PlaylistStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	config := common.NewDefaultConfig()
	config.OpenAI.APIKey = "sk-test"
	config.Pipeline.CallTimeout = "5s"
	config.Pipeline.TTSTimeout = "5s"

	f := &fixture{
		jobs:      jobs.NewManager(jobs.NewMemoryStore(), logger),
		catalog:   new(MockCatalog),
		planner:   new(MockPlanner),
		generator: new(MockGenerator),
		narration: new(MockNarration),
		playlists: storage.PlaylistStorage(),
	}
	f.svc = NewService(Dependencies{
		Jobs:      f.jobs,
		Catalog:   f.catalog,
		Planner:   f.planner,
		Generator: f.generator,
		Narration: f.narration,
		Playlists: f.playlists,
	}, config, logger)
	return f
}

func validParams() models.JobParams {
	return models.JobParams{
		Topic:       "Radiohead",
		AccessToken: "catalog-token",
		OwnerID:     "user-1",
	}
}

func track(i int) models.CatalogTrack {
	return models.CatalogTrack{
		ID:         fmt.Sprintf("t%d", i),
		URI:        fmt.Sprintf("spotify:track:t%d", i),
		Name:       fmt.Sprintf("Song %d", i),
		Artist:     "Radiohead",
		DurationMS: int64(200000 + i),
	}
}

func testPlan() *models.DocumentaryPlan {
	plan := &models.DocumentaryPlan{Title: "Plan title", NarrativeArc: "Arc", EraCovered: "1992-2003"}
	for i := 1; i <= 5; i++ {
		plan.RequiredTracks = append(plan.RequiredTracks, models.RequiredTrack{SongTitle: fmt.Sprintf("Song %d", i)})
	}
	return plan
}

// matchesFound marks the first n required tracks as found
func matchesFound(plan *models.DocumentaryPlan, n int) []models.RequiredTrackMatch {
	var out []models.RequiredTrackMatch
	for i, req := range plan.RequiredTracks {
		m := models.RequiredTrackMatch{Requested: req}
		if i < n {
			t := track(i + 1)
			m.Found = &t
		}
		out = append(out, m)
	}
	return out
}

func testDocumentary() *models.Documentary {
	doc := &models.Documentary{Title: "Radiohead: A Story", Topic: "Radiohead", Summary: "Summary"}
	for i := 1; i <= 5; i++ {
		doc.Timeline = append(doc.Timeline,
			models.TimelineEntry{Type: models.EntryTypeNarration, Text: fmt.Sprintf("Narration %d", i)},
			models.TimelineEntry{Type: models.EntryTypeSong, Title: fmt.Sprintf("Song %d", i), Artist: "Radiohead", TrackID: fmt.Sprintf("t%d", i)},
		)
	}
	return doc
}

// expectThroughPlan wires stages 1 to 3 to succeed
func (f *fixture) expectThroughPlan(plan *models.DocumentaryPlan) {
	f.catalog.On("SearchArtist", mock.Anything, "Radiohead", "catalog-token").
		Return(&models.Artist{ID: "a1", Name: "Radiohead"}, nil)
	f.catalog.On("GetTopTracks", mock.Anything, "a1", "US", "catalog-token").
		Return([]models.CatalogTrack{track(1), track(2)}, nil)
	f.planner.On("Plan", mock.Anything, "Radiohead", mock.Anything, "").Return(plan, nil)
}

func (f *fixture) waitForJob(t *testing.T, jobID string) *models.Job {
	t.Helper()
	f.svc.Wait()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, ok := f.jobs.GetJob(jobID)
		job = j
		return ok && j.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func urls(n int) []*string {
	out := make([]*string, n)
	for i := range out {
		u := fmt.Sprintf("/tts/pl_%d.mp3", i)
		out[i] = &u
	}
	return out
}

func TestSubmit_AllRequiredFoundSkipsBackup(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, plan.RequiredTracks, "Radiohead", "US", "catalog-token").
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req interfaces.GenerateRequest) bool {
		return req.Topic == "Radiohead" && len(req.Catalog) == 5
	})).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).Return(urls(5), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	require.NotNil(t, final.Result)

	assert.Equal(t, models.TrackSearchResults{Found: 5, Missing: 0, Backup: 0}, final.Result.TrackSearchResults)
	f.catalog.AssertNotCalled(t, "FetchArtistCatalog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	timeline := final.Result.Data.Timeline
	require.Len(t, timeline, 10)
	assert.Equal(t, "/tts/pl_0.mp3", timeline[0].TTSURL)
	assert.Equal(t, int64(200001), timeline[1].DurationMS)
	assert.Equal(t, "Plan title", final.Result.Plan.Title)

	stored, err := f.playlists.Get(context.Background(), final.Result.PlaylistID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.OwnerID)
	assert.Equal(t, "Radiohead: A Story", stored.Title)
	assert.Equal(t, "/tts/pl_4.mp3", stored.Timeline[8].TTSURL)
}

func TestSubmit_PartialMatchRunsBackup(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, plan.RequiredTracks, "Radiohead", "US", "catalog-token").
		Return(matchesFound(plan, 2), nil)

	backup := []models.CatalogTrack{track(1), track(3), track(4), track(5), track(6), track(7)}
	f.catalog.On("FetchArtistCatalog", mock.Anything, "a1", "US", "catalog-token", 50).Return(backup, nil)
	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req interfaces.GenerateRequest) bool {
		// found t1,t2 merged with backup minus the duplicate t1
		return len(req.Catalog) == 7
	})).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).Return(urls(5), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	assert.Equal(t, models.TrackSearchResults{Found: 2, Missing: 3, Backup: 6}, final.Result.TrackSearchResults)
}

func TestSubmit_BackupFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 0), nil)
	f.catalog.On("FetchArtistCatalog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("catalog down"))
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).Return(urls(5), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	assert.Equal(t, models.TrackSearchResults{Found: 0, Missing: 5, Backup: 0}, final.Result.TrackSearchResults)
}

func TestSubmit_NarrationFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("network unreachable"))

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	assert.Equal(t, stageNarration.Number, final.Stage)
	assert.Contains(t, final.Detail, "Narration skipped")
	for _, e := range final.Result.Data.Timeline {
		assert.Empty(t, e.TTSURL)
	}
	assert.NotEmpty(t, final.Result.PlaylistID)
}

func TestSubmit_NarrationOptionsCarryPlaylistAndJob(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)

	var gotOpts interfaces.BatchOptions
	var gotTexts []string
	partial := urls(5)
	partial[2] = nil
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotTexts = args.Get(1).([]string)
			gotOpts = args.Get(2).(interfaces.BatchOptions)
		}).
		Return(partial, nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)
	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)

	assert.Equal(t, []string{"Narration 1", "Narration 2", "Narration 3", "Narration 4", "Narration 5"}, gotTexts)
	assert.Equal(t, final.Result.PlaylistID, gotOpts.PlaylistID)
	assert.Equal(t, job.ID, gotOpts.JobID)

	timeline := final.Result.Data.Timeline
	assert.NotEmpty(t, timeline[0].TTSURL)
	assert.Empty(t, timeline[4].TTSURL)
	assert.Contains(t, final.Detail, "4 of 5")
}

func TestSubmit_NoNarrationSkipsTTS(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)

	doc := testDocumentary()
	var songs []models.TimelineEntry
	for _, e := range doc.Timeline {
		if e.IsSong() {
			songs = append(songs, e)
		}
	}
	doc.Timeline = songs
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(doc, nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)
	final := f.waitForJob(t, job.ID)

	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	f.narration.AssertNotCalled(t, "SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_ArtistNotFoundFailsJob(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("SearchArtist", mock.Anything, "Radiohead", "catalog-token").Return(nil, nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "artist not found")
	assert.Nil(t, final.Result)
	f.planner.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_PlannerErrorFailsJob(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("SearchArtist", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Artist{ID: "a1", Name: "Radiohead"}, nil)
	f.catalog.On("GetTopTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("provider unavailable"))

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "stage 3")
	assert.Contains(t, final.Error, "provider unavailable")
}

func TestSubmit_GeneratorErrorFailsJobWithoutPlaylist(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("bad json"))

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "stage 6")

	list, err := f.playlists.ListByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmit_TopTracksAPIErrorContinuesWithoutThem(t *testing.T) {
	f := newFixture(t)
	recorder := &recordingTracker{Manager: f.jobs}
	f.svc.deps.Jobs = recorder

	plan := testPlan()
	f.catalog.On("SearchArtist", mock.Anything, "Radiohead", "catalog-token").
		Return(&models.Artist{ID: "a1", Name: "Radiohead"}, nil)
	f.catalog.On("GetTopTracks", mock.Anything, "a1", "US", "catalog-token").
		Return(nil, &spotify.APIError{StatusCode: 404, Message: "no top tracks", Endpoint: "/artists/a1/top-tracks"})
	f.planner.On("Plan", mock.Anything, "Radiohead", mock.MatchedBy(func(top []models.CatalogTrack) bool {
		return len(top) == 0
	}), "").Return(plan, nil)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).Return(urls(5), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)
	assert.Contains(t, recorder.details(stageTopTracks.Number), "Top tracks unavailable, continuing without popular tracks")
	f.planner.AssertExpectations(t)
}

func TestSubmit_TopTracksTransportErrorFailsJob(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("SearchArtist", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Artist{ID: "a1", Name: "Radiohead"}, nil)
	f.catalog.On("GetTopTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer"))

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "stage 2")
	assert.Nil(t, final.Result)
	f.planner.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_PlaylistSaveErrorFailsJob(t *testing.T) {
	f := newFixture(t)
	store := new(MockPlaylistStorage)
	store.On("Save", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))
	f.svc.deps.Playlists = store

	plan := testPlan()
	f.expectThroughPlan(plan)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "stage 6")
	assert.Contains(t, final.Error, "disk full")
	assert.Nil(t, final.Result)
	f.narration.AssertNotCalled(t, "SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_PanicFailsJob(t *testing.T) {
	f := newFixture(t)
	f.catalog.On("SearchArtist", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(nil, nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "boom")
}

func TestSubmit_EmptyTopicRejected(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Topic = "   "
	job, err := f.svc.Submit(context.Background(), params)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "topic")
	assert.Nil(t, job)
	assert.Empty(t, f.jobs.GetUserJobs("user-1"))
}

func TestSubmit_ValidationUsesWireNames(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.AccessToken = ""
	params.Market = "USA"
	_, err := f.svc.Submit(context.Background(), params)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "accessToken")
	assert.Contains(t, err.Error(), "market")
}

func TestSubmit_AcceptsFromTokenMarket(t *testing.T) {
	f := newFixture(t)

	params := validParams()
	params.Market = " FROM_TOKEN "
	f.catalog.On("SearchArtist", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("stop here"))

	job, err := f.svc.Submit(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, models.MarketFromToken, job.Params.Market)

	f.waitForJob(t, job.ID)

	params.Market = "gb"
	job, err = f.svc.Submit(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "GB", job.Params.Market)
	f.waitForJob(t, job.ID)
}

func TestSubmit_RequiresLLMCredential(t *testing.T) {
	f := newFixture(t)
	f.svc.config.OpenAI.APIKey = ""

	_, err := f.svc.Submit(context.Background(), validParams())
	assert.ErrorIs(t, err, ErrLLMNotConfigured)
	assert.Empty(t, f.jobs.GetUserJobs("user-1"))
}

func TestSubmit_ReturnsBeforePipelineRuns(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.catalog.On("SearchArtist", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil, nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	_, err = f.svc.Submit(context.Background(), validParams())
	var capErr *jobs.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, job.ID, capErr.ActiveJobID)

	close(release)
	final := f.waitForJob(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
}

func TestSubmit_ProgressStagesNonDecreasing(t *testing.T) {
	f := newFixture(t)
	plan := testPlan()

	release := make(chan struct{})
	f.catalog.On("SearchArtist", mock.Anything, "Radiohead", "catalog-token").
		Run(func(mock.Arguments) { <-release }).
		Return(&models.Artist{ID: "a1", Name: "Radiohead"}, nil)
	f.catalog.On("GetTopTracks", mock.Anything, "a1", "US", "catalog-token").Return([]models.CatalogTrack{track(1)}, nil)
	f.planner.On("Plan", mock.Anything, "Radiohead", mock.Anything, "").Return(plan, nil)
	f.catalog.On("SearchRequiredTracks", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchesFound(plan, 5), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(testDocumentary(), nil)
	f.narration.On("SynthesizeBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			opts := args.Get(2).(interfaces.BatchOptions)
			for i := 1; i <= 5; i++ {
				opts.OnProgress(i, 5)
			}
		}).
		Return(urls(5), nil)

	job, err := f.svc.Submit(context.Background(), validParams())
	require.NoError(t, err)

	events := make(chan jobs.Event, 64)
	_, unsubscribe, err := f.jobs.Subscribe(job.ID, jobs.ListenerFunc(func(e jobs.Event) { events <- e }))
	require.NoError(t, err)
	defer unsubscribe()
	close(release)

	final := f.waitForJob(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, final.Status, final.Error)

	lastStage := 0
	seen := map[int]bool{}
	for done := false; !done; {
		select {
		case e := <-events:
			if e.Type == jobs.EventProgress {
				assert.GreaterOrEqual(t, e.Stage, lastStage)
				lastStage = e.Stage
				seen[e.Stage] = true
			}
			done = e.IsTerminal()
		case <-time.After(2 * time.Second):
			t.Fatal("terminal event not delivered")
		}
	}
	for s := 1; s <= 7; s++ {
		assert.True(t, seen[s], "stage %d reported", s)
	}
}
