package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "inkwell/internal/adapters/http"
	"inkwell/internal/adapters/llm"
	"inkwell/internal/adapters/storage/memory"
	"inkwell/internal/app/assembly"
	"inkwell/internal/app/collab"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/app/setting"
	"inkwell/internal/events"
	"inkwell/internal/registry"
)

func newTestServer() http.Handler {
	reg := registry.Default()
	collabSvc := collab.NewService(
		memory.NewSessionStore(), reg, assembly.New(), dispatch.New(llm.NewMockCompleter()), events.NewBus())
	settingSvc := setting.NewService(collabSvc, reg, memory.NewSettingStore())
	return httpadapter.NewServer(collabSvc, settingSvc, reg)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/sessions", map[string]any{
		"story_id": "story-1",
		"title":    "Chapter three",
		"role_ids": []string{"plot-advisor", "editor"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[map[string]any](t, rec)
	return created["id"].(string)
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestServer(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetSession(t *testing.T) {
	handler := newTestServer()
	id := createSession(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		Session struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			Participants []struct {
				ID string `json:"id"`
			} `json:"participants"`
		} `json:"session"`
		Messages []any `json:"messages"`
	}](t, rec)

	assert.Equal(t, id, got.Session.ID)
	assert.Equal(t, "active", got.Session.Status)
	assert.Len(t, got.Session.Participants, 2)
	assert.Empty(t, got.Messages)
}

func TestCreateSessionValidation(t *testing.T) {
	handler := newTestServer()

	rec := doJSON(t, handler, http.MethodPost, "/sessions", map[string]any{"story_id": "s"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/sessions", map[string]any{
		"story_id": "s",
		"role_ids": []string{"ghost-role"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageAndGenerate(t *testing.T) {
	handler := newTestServer()
	id := createSession(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{
		"content": "The heist goes wrong.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/generate", map[string]any{
		"role_ids":      []string{"plot-advisor"},
		"story_context": "A coastal city ruled by tide mages.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[struct {
		Results []struct {
			RoleID  string `json:"role_id"`
			Message *struct {
				ID         string `json:"id"`
				Suggestion string `json:"suggestion"`
				Kind       string `json:"kind"`
			} `json:"message"`
			Error string `json:"error"`
		} `json:"results"`
	}](t, rec)

	require.Len(t, got.Results, 1)
	require.NotNil(t, got.Results[0].Message)
	assert.Equal(t, "proposed", got.Results[0].Message.Suggestion)
	assert.Equal(t, "plot", got.Results[0].Message.Kind)
}

func TestSuggestionDecisionFlow(t *testing.T) {
	handler := newTestServer()
	id := createSession(t, handler)

	doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"content": "Go."})
	rec := doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/generate", map[string]any{
		"role_ids": []string{"plot-advisor"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		Results []struct {
			Message struct {
				ID      string `json:"id"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"results"`
	}](t, rec)
	msgID := got.Results[0].Message.ID

	rec = doJSON(t, handler, http.MethodGet, "/sessions/"+id+"/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[map[string][]map[string]any](t, rec)
	assert.Len(t, pending["suggestions"], 1)

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/suggestions/"+msgID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// rejecting an accepted suggestion conflicts
	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/suggestions/"+msgID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/sessions/"+id+"/merge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	merged := decode[map[string]string](t, rec)
	assert.Equal(t, got.Results[0].Message.Content, merged["content"])
}

func TestArchiveBlocksFurtherMessages(t *testing.T) {
	handler := newTestServer()
	id := createSession(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"content": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListSessionsByStory(t *testing.T) {
	handler := newTestServer()
	_ = createSession(t, handler)
	_ = createSession(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/sessions?story_id=story-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string][]map[string]any](t, rec)
	assert.Len(t, got["sessions"], 2)

	rec = doJSON(t, handler, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	rec := doJSON(t, newTestServer(), http.MethodGet, "/sessions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingSessionEndpoints(t *testing.T) {
	handler := newTestServer()

	rec := doJSON(t, handler, http.MethodPost, "/setting-sessions", map[string]string{
		"story_id": "story-1",
		"type":     "world",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[struct {
		Session struct {
			Title string `json:"title"`
		} `json:"session"`
		Results []any `json:"results"`
	}](t, rec)
	assert.Equal(t, "World setting session", got.Session.Title)
	assert.Len(t, got.Results, 2)

	rec = doJSON(t, handler, http.MethodPut, "/stories/story-1/settings/world", map[string]string{
		"content": "A drowned empire.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/stories/story-1/settings/world", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[map[string]any](t, rec)
	assert.Equal(t, "A drowned empire.", stored["content"])

	rec = doJSON(t, handler, http.MethodGet, "/stories/story-1/settings/plot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	rec := doJSON(t, newTestServer(), http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
