package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/jobs"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/llm"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/transcribe"
)

const (
	testToken  = "test-token-12345"
	testOrigin = "http://localhost:4100"
)

type mockModel struct {
	mu         sync.Mutex
	completeFn func(ctx context.Context, req llm.ChatRequest) (string, error)
}

func (m *mockModel) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	m.mu.Lock()
	fn := m.completeFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return "generated", nil
}

func (m *mockModel) GenerateImage(context.Context, llm.ImageRequest) (string, error) {
	return "", errors.New("image generation not available")
}

func (m *mockModel) set(fn func(ctx context.Context, req llm.ChatRequest) (string, error)) {
	m.mu.Lock()
	m.completeFn = fn
	m.mu.Unlock()
}

type mockProvider struct{}

func (mockProvider) Name() string { return "openai" }

func (mockProvider) Transcribe(context.Context, transcribe.Media) (transcribe.Result, error) {
	return transcribe.Result{Text: "Welcome to the channel"}, nil
}

type testEnv struct {
	svc    *studio.Service
	store  *storage.Store
	model  *mockModel
	worker *jobs.Worker
}

func setupAppHandler(t *testing.T, token string) (http.Handler, testEnv) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	objs, err := objects.NewLocal(t.TempDir(), testOrigin)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	model := &mockModel{}
	svc := studio.New(studio.Deps{
		Store:        store,
		Objects:      objs,
		Generator:    generate.New(model, generate.Options{}),
		Transcriber:  transcribe.NewManager(store, store, objs, "openai", mockProvider{}),
		Profiles:     profile.NewManager(store),
		PublicOrigin: testOrigin,
	})
	w := jobs.NewWorker(store, 0)
	svc.RegisterJobs(w)

	handler := NewAppHandler(AppDeps{Studio: svc, Token: token, WatchInterval: 10 * time.Millisecond})
	return handler, testEnv{svc: svc, store: store, model: model, worker: w}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// do serves an authenticated request and checks the status code.
func do(t *testing.T, h http.Handler, method, url, body string, want int) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	if rr.Code != want {
		t.Fatalf("%s %s status = %d, want %d; body = %s", method, url, rr.Code, want, rr.Body.String())
	}
	return rr
}

func decodeAs[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v; body = %s", err, rr.Body.String())
	}
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func createProject(t *testing.T, h http.Handler, title string) storage.Project {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/projects", `{"title":"`+title+`","tags":["go"]}`, http.StatusCreated)
	return decodeAs[storage.Project](t, rr)
}

func createVideo(t *testing.T, h http.Handler, projectID, body string) storage.Video {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/projects/"+projectID+"/videos", body, http.StatusCreated)
	return decodeAs[storage.Video](t, rr)
}

// uploadBlob requests a slot and PUTs data to it like the upload pipeline.
func uploadBlob(t *testing.T, h http.Handler, data []byte) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/uploads", `{"contentType":"video/mp4","size":`+itoa(len(data))+`}`, http.StatusOK)
	slot := decodeAs[struct {
		UploadURL string `json:"uploadUrl"`
		StorageID string `json:"storageId"`
	}](t, rr)
	if slot.UploadURL != testOrigin+"/blobs/"+slot.StorageID {
		t.Fatalf("uploadUrl = %q", slot.UploadURL)
	}

	req := httptest.NewRequest(http.MethodPut, "/blobs/"+slot.StorageID, bytes.NewReader(data))
	req.Header.Set("Content-Type", "video/mp4")
	put := httptest.NewRecorder()
	h.ServeHTTP(put, req)
	if put.Code != http.StatusCreated {
		t.Fatalf("PUT blob status = %d; body = %s", put.Code, put.Body.String())
	}
	return slot.StorageID
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuthRequired(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	for _, token := range []string{"", "wrong-token"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/projects", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want %d", token, rr.Code, http.StatusUnauthorized)
		}
		if got := decodeAs[errorBody](t, rr).Error.Type; got != "authentication_error" {
			t.Errorf("error type = %q, want authentication_error", got)
		}
	}
}

func TestEmptyServerTokenRejectsAll(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestProjectCRUD(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	p := createProject(t, h, "Launch week")
	if p.Status != storage.ProjectActive || p.UserID != DefaultUserID {
		t.Errorf("project = %+v", p)
	}

	rr := do(t, h, http.MethodPatch, "/projects/"+p.ID, `{"title":"Launch month","category":"tech"}`, http.StatusOK)
	if got := decodeAs[storage.Project](t, rr); got.Title != "Launch month" || got.Category != "tech" {
		t.Errorf("patched = %q/%q", got.Title, got.Category)
	}

	do(t, h, http.MethodPost, "/projects/"+p.ID+"/archive", "", http.StatusOK)
	rr = do(t, h, http.MethodGet, "/projects?status=active", "", http.StatusOK)
	if got := decodeAs[[]storage.Project](t, rr); len(got) != 0 {
		t.Errorf("active projects = %d, want 0", len(got))
	}
	do(t, h, http.MethodPost, "/projects/"+p.ID+"/restore", "", http.StatusOK)

	rr = do(t, h, http.MethodGet, "/projects/"+p.ID, "", http.StatusOK)
	if got := decodeAs[storage.Project](t, rr); got.LastOpenedAt.IsZero() {
		t.Error("GET did not stamp lastOpenedAt")
	}

	do(t, h, http.MethodDelete, "/projects/"+p.ID+"?hard=true", "", http.StatusOK)
	do(t, h, http.MethodGet, "/projects/"+p.ID, "", http.StatusNotFound)
}

func TestCreateProjectValidation(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{"description":"x"}`, "title is required"},
		{"bad json", `{"title":`, "invalid request body"},
		{"too many tags", `{"title":"x","tags":["1","2","3","4","5","6","7","8","9","10","11","12","13","14","15","16","17","18","19","20","21"]}`, "tags must be at most 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/projects", tt.body, http.StatusBadRequest)
			got := decodeAs[errorBody](t, rr)
			if got.Error.Type != "invalid_request_error" || !strings.Contains(got.Error.Message, tt.want) {
				t.Errorf("error = %+v, want message containing %q", got.Error, tt.want)
			}
		})
	}
}

func TestOtherUserSeesNotFound(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	p := createProject(t, h, "Mine")

	req := authReq(http.MethodGet, "/projects/"+p.ID, "", testToken)
	req.Header.Set(UserHeader, "someone-else")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if got := decodeAs[errorBody](t, rr).Error.Type; got != "not_found" {
		t.Errorf("error type = %q, want not_found", got)
	}
}

func TestUploadRejectsInvalidFile(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	do(t, h, http.MethodPost, "/uploads", `{"contentType":"image/png","size":1024}`, http.StatusBadRequest)
	do(t, h, http.MethodPost, "/uploads", `{"contentType":"video/mp4","size":209715200}`, http.StatusBadRequest)
	do(t, h, http.MethodPost, "/uploads", `{"contentType":"video/mp4"}`, http.StatusBadRequest)
}

func TestBlobsAreWriteOnce(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	data := []byte("fake video bytes")
	key := uploadBlob(t, h, data)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/blobs/"+key, strings.NewReader("overwrite")))
	if rr.Code != http.StatusConflict {
		t.Errorf("second PUT status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blobs/"+key, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET blob status = %d", rr.Code)
	}
	if !bytes.Equal(rr.Body.Bytes(), data) {
		t.Errorf("blob = %q, want %q", rr.Body.String(), data)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blobs/missing.mp4", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing blob status = %d, want 404", rr.Code)
	}
}

func TestUploadAndTranscribe(t *testing.T) {
	h, env := setupAppHandler(t, testToken)
	p := createProject(t, h, "Channel")
	key := uploadBlob(t, h, bytes.Repeat([]byte{0}, 4096))

	v := createVideo(t, h, p.ID, `{"title":"Intro","storageId":"`+key+`","metadata":{"duration":61.5,"width":1920,"height":1080}}`)
	if v.TranscriptionStatus != storage.TranscriptionIdle || v.Metadata.Duration != 61.5 {
		t.Errorf("video = %+v", v)
	}

	rr := do(t, h, http.MethodPost, "/videos/"+v.ID+"/transcribe", "", http.StatusAccepted)
	if got := decodeAs[storage.Video](t, rr); got.TranscriptionStatus != storage.TranscriptionProcessing {
		t.Errorf("status = %q, want processing", got.TranscriptionStatus)
	}
	do(t, h, http.MethodPost, "/videos/"+v.ID+"/transcribe", "", http.StatusBadRequest)

	if ok, err := env.worker.RunOnce(context.Background()); err != nil || !ok {
		t.Fatalf("RunOnce = %v, %v", ok, err)
	}

	rr = do(t, h, http.MethodGet, "/videos/"+v.ID, "", http.StatusOK)
	got := decodeAs[storage.Video](t, rr)
	if got.TranscriptionStatus != storage.TranscriptionCompleted || got.Transcription != "Welcome to the channel" {
		t.Errorf("video = %q/%q, want completed with transcript", got.TranscriptionStatus, got.Transcription)
	}

	rr = do(t, h, http.MethodGet, "/projects/"+p.ID+"/videos", "", http.StatusOK)
	if vids := decodeAs[[]storage.Video](t, rr); len(vids) != 1 {
		t.Errorf("videos = %d, want 1", len(vids))
	}
}

func TestCreateVideoRequiresUploadedFile(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	p := createProject(t, h, "Channel")

	do(t, h, http.MethodPost, "/projects/"+p.ID+"/videos", `{"storageId":"nope.mp4"}`, http.StatusBadRequest)
	do(t, h, http.MethodPost, "/projects/missing/videos", `{"title":"x"}`, http.StatusNotFound)
}

func TestCanvasRoundTrip(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	p := createProject(t, h, "Canvas")

	rr := do(t, h, http.MethodGet, "/projects/"+p.ID+"/canvas", "", http.StatusOK)
	empty := decodeAs[struct {
		Nodes    []json.RawMessage  `json:"nodes"`
		Viewport map[string]float64 `json:"viewport"`
	}](t, rr)
	if len(empty.Nodes) != 0 || empty.Viewport["zoom"] != 1 {
		t.Errorf("empty canvas = %+v", empty)
	}

	body := `{"nodes":[{"id":"n1","type":"video","position":{"x":10,"y":20},"data":{"videoId":"v1","title":"Intro"}},` +
		`{"id":"n2","type":"agent","position":{"x":400,"y":20},"data":{"agentId":"a1","agentType":"title"}}],` +
		`"edges":[{"id":"e1","source":"n1","target":"n2"}],"viewport":{"x":0,"y":0,"zoom":0.8}}`
	do(t, h, http.MethodPut, "/projects/"+p.ID+"/canvas", body, http.StatusOK)

	rr = do(t, h, http.MethodGet, "/projects/"+p.ID+"/canvas", "", http.StatusOK)
	got := decodeAs[struct {
		Nodes []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"nodes"`
		Edges    []json.RawMessage  `json:"edges"`
		Viewport map[string]float64 `json:"viewport"`
	}](t, rr)
	if len(got.Nodes) != 2 || got.Nodes[1].Type != "agent" || len(got.Edges) != 1 || got.Viewport["zoom"] != 0.8 {
		t.Errorf("canvas = %+v", got)
	}

	do(t, h, http.MethodPut, "/projects/"+p.ID+"/canvas", `{"nodes":[{"id":"x","type":"bogus"}]}`, http.StatusBadRequest)
}

func TestShareFlow(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	p := createProject(t, h, "Public")

	rr := do(t, h, http.MethodPost, "/projects/"+p.ID+"/shares", "", http.StatusCreated)
	link := decodeAs[studio.ShareLink](t, rr)
	if link.URL != testOrigin+"/share/"+link.ShareID || link.Title != "Public" {
		t.Errorf("link = %+v", link)
	}

	// Public routes need no token.
	pub := httptest.NewRecorder()
	h.ServeHTTP(pub, httptest.NewRequest(http.MethodGet, "/share/"+link.ShareID, nil))
	if pub.Code != http.StatusOK {
		t.Fatalf("public share status = %d", pub.Code)
	}
	for want := 1; want <= 2; want++ {
		view := httptest.NewRecorder()
		h.ServeHTTP(view, httptest.NewRequest(http.MethodPost, "/share/"+link.ShareID+"/view", nil))
		if got := decodeAs[map[string]int](t, view)["viewCount"]; got != want {
			t.Errorf("viewCount = %d, want %d", got, want)
		}
	}

	rr = do(t, h, http.MethodPatch, "/shares/"+link.ShareID, `{"title":"Renamed"}`, http.StatusOK)
	if got := decodeAs[studio.ShareLink](t, rr); got.Title != "Renamed" || got.ViewCount != 2 {
		t.Errorf("updated share = %q views=%d", got.Title, got.ViewCount)
	}

	do(t, h, http.MethodDelete, "/shares/"+link.ShareID, "", http.StatusOK)
	gone := httptest.NewRecorder()
	h.ServeHTTP(gone, httptest.NewRequest(http.MethodGet, "/share/"+link.ShareID, nil))
	if gone.Code != http.StatusNotFound {
		t.Errorf("revoked share status = %d, want 404", gone.Code)
	}
	rr = do(t, h, http.MethodGet, "/projects/"+p.ID+"?touch=false", "", http.StatusOK)
	if got := decodeAs[storage.Project](t, rr); got.IsPublic {
		t.Error("project still public after revoking its only share")
	}
}

func TestAgentGenerateAndChat(t *testing.T) {
	h, env := setupAppHandler(t, testToken)
	p := createProject(t, h, "Agents")
	v := createVideo(t, h, p.ID, `{"title":"Learn to Code in 10 Minutes"}`)

	rr := do(t, h, http.MethodPost, "/videos/"+v.ID+"/agents", `{"type":"title","canvasPosition":{"x":400,"y":100}}`, http.StatusCreated)
	a := decodeAs[storage.Agent](t, rr)
	if a.Status != storage.AgentIdle {
		t.Errorf("new agent status = %q, want idle", a.Status)
	}
	do(t, h, http.MethodPost, "/videos/"+v.ID+"/agents", `{"type":"podcast"}`, http.StatusBadRequest)

	env.model.set(func(context.Context, llm.ChatRequest) (string, error) {
		return `Title: "Code Fast"`, nil
	})
	rr = do(t, h, http.MethodPost, "/agents/"+a.ID+"/generate", "", http.StatusOK)
	a = decodeAs[storage.Agent](t, rr)
	if a.Status != storage.AgentReady || a.Draft != "Code Fast" {
		t.Errorf("agent = %q/%q, want ready with cleaned draft", a.Status, a.Draft)
	}

	env.model.set(func(context.Context, llm.ChatRequest) (string, error) {
		return "Sure.\nUPDATED TITLE: Code Faster", nil
	})
	rr = do(t, h, http.MethodPost, "/agents/"+a.ID+"/chat", `{"message":"more urgency"}`, http.StatusOK)
	res := decodeAs[studio.ChatResult](t, rr)
	if !res.Updated || res.Agent.Draft != "Code Faster" || len(res.Agent.ChatHistory) != 2 {
		t.Errorf("chat result = %+v", res)
	}
	do(t, h, http.MethodPost, "/agents/"+a.ID+"/chat", `{"message":""}`, http.StatusBadRequest)

	rr = do(t, h, http.MethodGet, "/videos/"+v.ID+"/agents", "", http.StatusOK)
	if agents := decodeAs[[]storage.Agent](t, rr); len(agents) != 1 {
		t.Errorf("agents = %d, want 1", len(agents))
	}
	do(t, h, http.MethodDelete, "/agents/"+a.ID, "", http.StatusOK)
	do(t, h, http.MethodGet, "/agents/"+a.ID, "", http.StatusNotFound)
}

func TestGenerateAgentFailure(t *testing.T) {
	h, env := setupAppHandler(t, testToken)
	p := createProject(t, h, "Agents")
	v := createVideo(t, h, p.ID, `{"title":"Intro"}`)
	rr := do(t, h, http.MethodPost, "/videos/"+v.ID+"/agents", `{"type":"blog"}`, http.StatusCreated)
	a := decodeAs[storage.Agent](t, rr)

	env.model.set(func(context.Context, llm.ChatRequest) (string, error) {
		return "", &llm.APIError{Status: http.StatusTooManyRequests, Body: "slow down"}
	})
	rr = do(t, h, http.MethodPost, "/agents/"+a.ID+"/generate", "", http.StatusTooManyRequests)
	if got := decodeAs[errorBody](t, rr).Error.Type; got != "rate_limit_error" {
		t.Errorf("error type = %q, want rate_limit_error", got)
	}

	rr = do(t, h, http.MethodGet, "/agents/"+a.ID, "", http.StatusOK)
	a = decodeAs[storage.Agent](t, rr)
	if a.Status != storage.AgentError || a.ErrorMessage == "" || strings.Contains(a.ErrorMessage, "slow down") {
		t.Errorf("agent = %q/%q, want error with sanitized message", a.Status, a.ErrorMessage)
	}
}

func TestStatelessGenerate(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := do(t, h, http.MethodPost, "/generate", `{"agentType":"description","videoData":{"title":"Intro"}}`, http.StatusOK)
	resp := decodeAs[generate.Response](t, rr)
	if resp.Content != "generated" || !strings.Contains(resp.Prompt, "Intro") {
		t.Errorf("response = %+v", resp)
	}

	rr = do(t, h, http.MethodPost, "/generate", `{"agentType":"title","videoData":{}}`, http.StatusBadRequest)
	if got := decodeAs[errorBody](t, rr).Error.Type; got != "invalid_request_error" {
		t.Errorf("error type = %q", got)
	}
	rr = do(t, h, http.MethodPost, "/generate", `{"videoData":{"title":"x"}}`, http.StatusBadRequest)
	if got := decodeAs[errorBody](t, rr).Error.Message; !strings.Contains(got, "agentType is required") {
		t.Errorf("message = %q", got)
	}
}

func TestGenerateBatchIsolatesFailures(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"requests":[` +
		`{"agentType":"title","videoData":{"title":"Intro"}},` +
		`{"agentType":"blog","videoData":{}}]}`
	rr := do(t, h, http.MethodPost, "/generate/batch", body, http.StatusOK)
	sum := decodeAs[generate.BatchSummary](t, rr)
	if sum.Succeeded != 1 || sum.Failed != 1 || len(sum.Results) != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Results[1].Status != generate.ItemFailed || sum.Results[1].Error == "" {
		t.Errorf("second result = %+v", sum.Results[1])
	}

	do(t, h, http.MethodPost, "/generate/batch", `{"requests":[]}`, http.StatusBadRequest)
}

func TestProfileRoundTrip(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := do(t, h, http.MethodGet, "/profile", "", http.StatusOK)
	if got := decodeAs[profile.Profile](t, rr); !got.IsEmpty() {
		t.Errorf("initial profile = %+v, want empty", got)
	}

	do(t, h, http.MethodPut, "/profile", `{"channelName":"Code Corner","niche":"programming","tone":"casual"}`, http.StatusOK)
	rr = do(t, h, http.MethodGet, "/profile", "", http.StatusOK)
	got := decodeAs[profile.Profile](t, rr)
	if got.ChannelName != "Code Corner" || got.Niche != "programming" || got.Tone != "casual" {
		t.Errorf("profile = %+v", got)
	}
}

func TestImportTranscription(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "script.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Hook: open with the result.\r\nThen explain.\r\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/transcriptions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decodeAs[map[string]string](t, rr)
	if got["text"] != "Hook: open with the result.\nThen explain." || got["fileName"] != "script.txt" {
		t.Errorf("import = %+v", got)
	}

	do(t, h, http.MethodPost, "/transcriptions/import", "not multipart", http.StatusBadRequest)
}

func TestWatchVideoPushesStatusChanges(t *testing.T) {
	h, env := setupAppHandler(t, testToken)
	srv := httptest.NewServer(h)
	defer srv.Close()

	p := createProject(t, h, "Watch")
	key := uploadBlob(t, h, []byte("video"))
	v := createVideo(t, h, p.ID, `{"title":"Intro","storageId":"`+key+`"}`)
	do(t, h, http.MethodPost, "/videos/"+v.ID+"/transcribe", `{"provider":"openai"}`, http.StatusAccepted)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+testToken)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/videos/" + v.ID + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial: %v (resp = %v)", err, resp)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first storage.Video
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading initial state: %v", err)
	}
	if first.TranscriptionStatus != storage.TranscriptionProcessing {
		t.Errorf("initial status = %q, want processing", first.TranscriptionStatus)
	}

	if _, err := env.worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var done storage.Video
	if err := conn.ReadJSON(&done); err != nil {
		t.Fatalf("reading update: %v", err)
	}
	if done.TranscriptionStatus != storage.TranscriptionCompleted || done.Transcription != "Welcome to the channel" {
		t.Errorf("update = %q/%q", done.TranscriptionStatus, done.Transcription)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after terminal state err = %v, want normal close", err)
	}
}

func TestWatchRequiresAuthAndVideo(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos/x/watch", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rr.Code)
	}
	do(t, h, http.MethodGet, "/videos/missing/watch", "", http.StatusNotFound)
}
