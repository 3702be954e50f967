package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/jobs"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/ternarybob/musicdoc/internal/services/documentary"
	"github.com/ternarybob/musicdoc/internal/storage/badger"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, params models.JobParams) (*models.Job, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

type MockNarration struct {
	mock.Mock
}

func (m *MockNarration) SynthesizeBatch(ctx context.Context, texts []string, opts interfaces.BatchOptions) ([]*string, error) {
	args := m.Called(ctx, texts, opts)
	urls, _ := args.Get(0).([]*string)
	return urls, args.Error(1)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitHandler_Accepted(t *testing.T) {
	sub := new(MockSubmitter)
	sub.On("Submit", mock.Anything, models.JobParams{Topic: "Radiohead", AccessToken: "tok", OwnerID: "u1"}).
		Return(&models.Job{ID: "job-1"}, nil)
	h := NewDocumentaryHandler(sub, arbor.NewLogger())

	rec := postJSON(t, h.SubmitHandler, "/api/music-doc", map[string]string{
		"topic": "Radiohead", "accessToken": "tok", "ownerId": "u1",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "job-1", body["jobId"])
}

func TestSubmitHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: missing required field: topic", documentary.ErrValidation), http.StatusBadRequest},
		{"capacity", &jobs.CapacityError{UserID: "u1", ActiveJobID: "job-0"}, http.StatusTooManyRequests},
		{"llm not configured", documentary.ErrLLMNotConfigured, http.StatusInternalServerError},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := new(MockSubmitter)
			sub.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)
			h := NewDocumentaryHandler(sub, arbor.NewLogger())

			rec := postJSON(t, h.SubmitHandler, "/api/music-doc", map[string]string{"topic": "x"})
			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "error", body["status"])
			if tt.status == http.StatusTooManyRequests {
				assert.Equal(t, "job-0", body["activeJobId"])
			}
		})
	}
}

func TestSubmitHandler_RejectsBadJSONAndMethod(t *testing.T) {
	h := NewDocumentaryHandler(new(MockSubmitter), arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/music-doc", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.SubmitHandler(rec, httptest.NewRequest(http.MethodGet, "/api/music-doc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobHandler_PollAndList(t *testing.T) {
	m := newJobManager()
	job, err := m.CreateJob("u1", models.JobParams{Topic: "Radiohead", AccessToken: "secret-token"})
	require.NoError(t, err)
	h := NewJobHandler(m, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.GetJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")
	body := decodeBody(t, rec)
	polled := body["job"].(map[string]interface{})
	assert.Equal(t, "pending", polled["status"])
	assert.Equal(t, float64(0), polled["stage"])

	rec = httptest.NewRecorder()
	h.GetJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.UserJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["jobs"], 1)

	rec = httptest.NewRecorder()
	h.UserJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/users/nobody/jobs", nil))
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["jobs"])

	rec = httptest.NewRecorder()
	h.GetJobStatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/stats", nil))
	stats := decodeBody(t, rec)["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["pending"])
}

func newPlaylistHandler(t *testing.T) (*PlaylistHandler, interfaces.PlaylistStorage) {
	t.Helper()
	m, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return NewPlaylistHandler(m.PlaylistStorage(), "initial-id", arbor.NewLogger()), m.PlaylistStorage()
}

func TestPlaylistHandler_CreateGetPatchList(t *testing.T) {
	h, _ := newPlaylistHandler(t)

	rec := postJSON(t, h.CreateHandler, "/api/playlists", map[string]interface{}{"ownerId": "u1", "title": "T"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.CreateHandler, "/api/playlists", map[string]interface{}{
		"ownerId":  "u1",
		"title":    "T",
		"timeline": []map[string]string{{"type": "narration", "text": "Hello"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["playlist"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, id)

	rec = httptest.NewRecorder()
	h.ItemHandler(rec, httptest.NewRequest(http.MethodGet, "/api/playlists/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPatch, "/api/playlists/"+id, strings.NewReader(`{"title":"Renamed"}`))
	rec = httptest.NewRecorder()
	h.ItemHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decodeBody(t, rec)["playlist"].(map[string]interface{})["title"])

	req = httptest.NewRequest(http.MethodPatch, "/api/playlists/missing", strings.NewReader(`{"title":"x"}`))
	rec = httptest.NewRecorder()
	h.ItemHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.OwnerPlaylistsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/playlists", nil))
	assert.Len(t, decodeBody(t, rec)["playlists"], 1)

	rec = httptest.NewRecorder()
	h.InitialPlaylistHandler(rec, httptest.NewRequest(http.MethodGet, "/api/initial-playlist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "initial-id", decodeBody(t, rec)["id"])
}

func TestTTSHandler_AcceptsStringsAndObjects(t *testing.T) {
	narration := new(MockNarration)
	url := "/tts/pl_0.mp3"
	narration.On("SynthesizeBatch", mock.Anything, []string{"Hello", "", "World"}, interfaces.BatchOptions{PlaylistID: "pl"}).
		Return([]*string{&url, nil, nil}, nil)
	h := NewTTSHandler(narration, arbor.NewLogger())

	rec := postJSON(t, h.BatchHandler, "/api/tts-batch", map[string]interface{}{
		"segments":   []interface{}{"Hello", map[string]interface{}{"text": "  "}, map[string]string{"text": "World"}},
		"playlistId": "pl",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"/tts/pl_0.mp3", nil, nil}, decodeBody(t, rec)["urls"])

	rec = postJSON(t, h.BatchHandler, "/api/tts-batch", map[string]interface{}{"segments": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIHandler_ConfigScript(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Server.ClientDebug = true
	h := NewAPIHandler(config, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ConfigScriptHandler(rec, httptest.NewRequest(http.MethodGet, "/config.js", nil))
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "window.CLIENT_DEBUG = true;")
}

func TestPathParam(t *testing.T) {
	assert.Equal(t, "abc", PathParam("/api/jobs/abc/stream", "/api/jobs/"))
	assert.Equal(t, "abc", PathParam("/api/jobs/abc", "/api/jobs/"))
	assert.Equal(t, "", PathParam("/api/other/abc", "/api/jobs/"))
}
