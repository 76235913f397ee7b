package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ayurgenix/internal/core"
	"ayurgenix/internal/dataset"
	"ayurgenix/internal/db"
	"ayurgenix/internal/llm"
	"ayurgenix/pkg"
)

type stubLLM struct {
	mu    sync.Mutex
	reply string
	calls [][]llm.Message
}

func (s *stubLLM) Chat(_ context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, messages)
	return s.reply, nil
}

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.calls[len(s.calls)-1]
	return msgs[len(msgs)-1].Content
}

type fixture struct {
	srv   *Server
	store *db.MemoryStore
	llm   *stubLLM
}

func newFixture(t *testing.T, withLLM bool, messageCap int) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "conditions.csv")
	require.NoError(t, os.WriteFile(path, []byte("Disease,Symptoms,Ayurvedic Herbs\n"+
		"Migraine,\"headache, nausea\",Brahmi\n"+
		"Insomnia,sleeplessness,Ashwagandha\n"), 0o644))
	index := dataset.NewIndex(path)

	f := &fixture{store: db.NewMemoryStore(time.Hour), llm: &stubLLM{reply: "Namaste 🌿"}}
	var client llm.Client
	if withLLM {
		client = f.llm
	}
	srv, err := NewServer(f.store, core.NewChatService(client, index.Load()), index, messageCap)
	require.NoError(t, err)
	srv.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC) }
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/sessions/"+resp["session_id"], resp["start_url"])
	return resp["session_id"]
}

func (f *fixture) saveProfile(t *testing.T, id string) {
	t.Helper()
	w := f.do(t, http.MethodPut, "/api/sessions/"+id+"/profile",
		`{"name":"Asha","age":34,"gender":"Female","dosha":"Pitta","stress":"High"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, true, 50)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSaveProfileGreets(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)

	w := f.do(t, http.MethodPut, "/api/sessions/"+id+"/profile", `{"name":"Asha","age":34,"dosha":"pitta"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Profile  pkg.Profile `json:"profile"`
		Greeting string      `json:"greeting"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Pitta", resp.Profile.Dosha)
	assert.Equal(t, "Not provided", resp.Profile.Gender)
	assert.Equal(t, "Namaste 🌿", resp.Greeting)
	assert.Contains(t, f.llm.lastPrompt(), "greet the user and ASK QUESTIONS")

	sess, err := f.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sess.ProfileSaved)
	assert.True(t, sess.GreetingSent)
	transcript, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, pkg.RoleModel, transcript[0].Role)
}

func TestSaveProfileForm(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)

	form := url.Values{"name": {""}, "age": {"40"}, "stress": {"Low"}}
	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/profile", form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"HX-Request":   "true",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))

	sess, err := f.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Guest", sess.Profile.Name)
	assert.Equal(t, 40, sess.Profile.Age)
	assert.Equal(t, "Low", sess.Profile.Stress)
}

func TestSaveProfileRejectsAge(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)

	w := f.do(t, http.MethodPut, "/api/sessions/"+id+"/profile", `{"age":200}`, jsonHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveProfileWithoutLLM(t *testing.T) {
	f := newFixture(t, false, 50)
	id := f.newSession(t)

	w := f.do(t, http.MethodPut, "/api/sessions/"+id+"/profile", `{"name":"Asha"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgNoAPIKey)
	transcript, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestPostMessageRequiresProfile(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), msgProfileFirst)
}

func TestPostMessageRequiresLLM(t *testing.T) {
	f := newFixture(t, false, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), msgNoAPIKey)
}

func TestPostMessageRejectsBlank(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"   "}`, jsonHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageUnknownSession(t *testing.T) {
	f := newFixture(t, true, 50)

	w := f.do(t, http.MethodPost, "/api/sessions/does-not-exist/messages", `{"content":"headache"}`, jsonHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessageJSON(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)
	f.llm.reply = "Based on our verified Ayurvedic database... Brahmi"

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"I get a headache every evening"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var resp pkg.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, f.llm.reply, resp.Reply)
	assert.Equal(t, 1, resp.Matches)
	assert.False(t, resp.Capped)

	prompt := f.llm.lastPrompt()
	assert.Contains(t, prompt, "### 1. Migraine")
	assert.Contains(t, prompt, "- Name: Asha\n")

	transcript, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, transcript, 3, "greeting, question, reply")
	assert.Equal(t, pkg.RoleUser, transcript[1].Role)
	assert.Equal(t, f.llm.reply, transcript[2].Content)
}

func TestPostMessageHTMXEscapes(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)
	f.llm.reply = "<b>rest</b>"

	form := url.Values{"content": {"<script>x</script>"}}
	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"HX-Request":   "true",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<div class="message user">&lt;script&gt;x&lt;/script&gt;</div>`)
	assert.Contains(t, body, `<div class="message bot"><p>`)
	assert.Contains(t, body, "rest")
	assert.NotContains(t, body, "<b>", "raw HTML in replies is dropped")
}

func TestPostMessageHTMXRendersMarkdown(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)
	f.llm.reply = "### Remedies\n\n**Brahmi** calms the mind.\n\n- rest\n- [read more](javascript:alert(1))"

	form := url.Values{"content": {"headache"}}
	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"HX-Request":   "true",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<h3>Remedies</h3>")
	assert.Contains(t, body, "<strong>Brahmi</strong>")
	assert.Contains(t, body, "<li>rest</li>")
	assert.NotContains(t, body, "javascript:")
}

func TestPostMessageCap(t *testing.T) {
	f := newFixture(t, true, 1)
	id := f.newSession(t)
	f.saveProfile(t, id)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	calls := len(f.llm.calls)

	w = f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"still aching"}`, jsonHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var resp pkg.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Capped)
	assert.Equal(t, core.CapMessage, resp.Reply)
	assert.Len(t, f.llm.calls, calls, "capped turns do not reach the LLM")

	transcript, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"and again"}`, jsonHeaders)
	again, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, again, len(transcript), "capped turns are not stored")
	assert.Len(t, transcript, 3, "greeting, question, reply")
}

func TestPostMessageCapConcurrent(t *testing.T) {
	f := newFixture(t, true, 2)
	id := f.newSession(t)
	f.saveProfile(t, id)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/messages", strings.NewReader(`{"content":"headache"}`))
			req.Header.Set("Content-Type", "application/json")
			f.srv.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	n, err := f.store.CountUserMessages(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResetRegreets(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	transcript, err := f.store.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, pkg.RoleModel, transcript[0].Role)
}

func TestReport(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)

	w := f.do(t, http.MethodGet, "/api/sessions/"+id+"/report", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing to report before the conversation starts")

	f.saveProfile(t, id)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)

	w = f.do(t, http.MethodGet, "/api/sessions/"+id+"/report?format=md", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ayurgenix_report_20260102_0304.md")
	assert.Contains(t, w.Body.String(), "**You:** headache")
	assert.Contains(t, w.Body.String(), "- **Name:** Asha")

	w = f.do(t, http.MethodGet, "/api/sessions/"+id+"/report?format=pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	w = f.do(t, http.MethodGet, "/api/sessions/"+id+"/report?format=docx", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetEndpoints(t *testing.T) {
	f := newFixture(t, true, 50)

	w := f.do(t, http.MethodGet, "/api/dataset", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"loaded":true,"conditions":2}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/dataset/matches?q=sleeplessness", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Matches []dataset.Record `json:"matches"`
		Context string           `json:"context"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "Insomnia", resp.Matches[0].Condition)
	assert.Contains(t, resp.Context, "- **Ayurvedic Herbs:** Ashwagandha")

	w = f.do(t, http.MethodGet, "/api/dataset/matches?q=", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), core.NoMatchesContext)
}

func TestDatasetStatusWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	index := dataset.NewIndex(filepath.Join(t.TempDir(), "missing.xlsx"))
	srv, err := NewServer(db.NewMemoryStore(time.Hour), core.NewChatService(nil, index.Load()), index, 50)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st pkg.DatasetStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Loaded)
	assert.Zero(t, st.Conditions)
	assert.Contains(t, st.Error, "dataset unavailable")
}

func TestPages(t *testing.T) {
	f := newFixture(t, true, 50)

	w := f.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dataset loaded: 2 conditions")

	w = f.do(t, http.MethodPost, "/sessions", "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/sessions/"))

	w = f.do(t, http.MethodGet, location, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome to AyurGenix AI")

	id := strings.TrimPrefix(location, "/sessions/")
	f.saveProfile(t, id)
	w = f.do(t, http.MethodGet, location, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>Namaste 🌿</p>", "replies render as markdown")
	assert.Contains(t, w.Body.String(), "format=pdf")

	w = f.do(t, http.MethodGet, "/sessions/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSessionJSON(t *testing.T) {
	f := newFixture(t, true, 50)
	id := f.newSession(t)
	f.saveProfile(t, id)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"content":"headache"}`, jsonHeaders)

	w := f.do(t, http.MethodGet, "/api/sessions/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Session      pkg.Session   `json:"session"`
		Transcript   []pkg.Message `json:"transcript"`
		UserMessages int           `json:"user_messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Session.ID)
	assert.Len(t, resp.Transcript, 3)
	assert.Equal(t, 1, resp.UserMessages)

	w = f.do(t, http.MethodGet, "/api/sessions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
