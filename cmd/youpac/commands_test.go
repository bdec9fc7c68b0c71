package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/upload"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	// failures answers the first n requests per route with 503.
	failures map[string]int
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{failures: map[string]int{}}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		key := r.Method + " " + r.URL.Path
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})
		fail := ts.failures[key] > 0
		if fail {
			ts.failures[key]--
		}
		ts.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"try later","type":"api_error"}}`))
			return
		}
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(strings.ReplaceAll(resp, "{{base}}", ts.server.URL)))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
		retry: apperr.RetryPolicy{
			MaxAttempts: 3,
			Base:        time.Millisecond,
			Cap:         time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

var ctx = context.Background()

func TestRequestUpload(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /uploads": `{"uploadUrl":"{{base}}/blobs/k1.mp4","storageId":"k1.mp4"}`,
	})

	slot, err := ts.client().RequestUpload(ctx, "video/mp4", 2048)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.StorageID != "k1.mp4" || slot.UploadURL != ts.server.URL+"/blobs/k1.mp4" {
		t.Errorf("slot = %+v", slot)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["contentType"] != "video/mp4" || body["size"] != float64(2048) {
		t.Errorf("body = %v", body)
	}
}

func TestMutationsRetryServerErrors(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p1/archive": `{"id":"p1","status":"archived"}`,
	})
	ts.failures["POST /projects/p1/archive"] = 2

	if err := ts.client().mutate(ctx, "POST", "/projects/p1/archive", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(ts.recorded()); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestMutationsDoNotRetryNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	err := ts.client().mutate(ctx, "DELETE", "/shares/missing", nil, nil)
	var ae *apiError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *apiError", err)
	}
	if ae.Status != http.StatusNotFound || ae.Message != "not found" || ae.Type != "not_found" {
		t.Errorf("apiError = %+v", ae)
	}
	if n := len(ts.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestCreateVideoIsNotRetried(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p1/videos": `{"id":"v1","projectId":"p1"}`,
	})
	ts.failures["POST /projects/p1/videos"] = 1

	if _, err := ts.client().CreateVideo(ctx, upload.NewVideo{ProjectID: "p1", Title: "Intro"}); err == nil {
		t.Fatal("expected error from 503")
	}
	if n := len(ts.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestScheduleTranscriptionBody(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /videos/v1/transcribe": `{"id":"v1","transcriptionStatus":"processing"}`,
	})
	c := ts.client()

	if err := c.ScheduleTranscription(ctx, "v1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.ScheduleTranscription(ctx, "v1", "elevenlabs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := ts.recorded()
	if reqs[0].Body != "" {
		t.Errorf("default provider body = %q, want empty", reqs[0].Body)
	}
	if !strings.Contains(reqs[1].Body, `"provider":"elevenlabs"`) {
		t.Errorf("body = %q, want provider", reqs[1].Body)
	}
}

type fakeProber struct{}

func (fakeProber) Basic(context.Context, string) (storage.VideoMetadata, error) {
	return storage.VideoMetadata{Duration: 12}, nil
}

func (fakeProber) Probe(context.Context, string) (storage.VideoMetadata, error) {
	return storage.VideoMetadata{Duration: 12.5, Width: 1280, Height: 720, Codec: "h264"}, nil
}

func TestRunUpload(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /uploads":            `{"uploadUrl":"{{base}}/blobs/k1.mp4","storageId":"k1.mp4"}`,
		"PUT /blobs/k1.mp4":        `{"storageId":"k1.mp4"}`,
		"POST /projects/p1/videos": `{"id":"v1","projectId":"p1","title":"intro","storageId":"k1.mp4"}`,
		"PUT /videos/v1/metadata":  `{"id":"v1"}`,
	})

	path := filepath.Join(t.TempDir(), "intro.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, 4096), 0o644); err != nil {
		t.Fatal(err)
	}

	var progress []float64
	v, err := runUpload(ctx, ts.client(), fakeProber{}, path, upload.Options{
		ProjectID:  "p1",
		OnProgress: func(p float64) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ID != "v1" || v.Metadata.Codec != "h264" {
		t.Errorf("video = %+v", v)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 1.0 {
		t.Errorf("progress = %v, want to end at 1.0", progress)
	}

	var paths []string
	for _, r := range ts.recorded() {
		paths = append(paths, r.Method+" "+r.Path)
	}
	want := []string{"POST /uploads", "PUT /blobs/k1.mp4", "POST /projects/p1/videos", "PUT /videos/v1/metadata"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", paths, want)
	}
}

func TestSetProfileField(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profile": `{"channelName":"Code Corner","niche":"go"}`,
		"PUT /profile": `{"channelName":"Code Corner","niche":"go","tone":"casual"}`,
	})

	if err := setProfileField(ctx, ts.client(), "tone", "casual"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reqs := ts.recorded()
	if len(reqs) != 2 || reqs[1].Method != "PUT" {
		t.Fatalf("requests = %+v", reqs)
	}
	var body map[string]string
	json.Unmarshal([]byte(reqs[1].Body), &body)
	if body["channelName"] != "Code Corner" || body["tone"] != "casual" {
		t.Errorf("PUT body = %v, want merged profile", body)
	}

	if err := setProfileField(ctx, ts.client(), "favorite_color", "blue"); err == nil {
		t.Error("expected error for unknown key")
	}
	if n := len(ts.recorded()); n != 2 {
		t.Errorf("unknown key sent %d extra requests", n-2)
	}
}

func TestBuildGenerateRequest(t *testing.T) {
	transcript := filepath.Join(t.TempDir(), "t.txt")
	os.WriteFile(transcript, []byte("hello world"), 0o644)

	req, err := buildGenerateRequest("blog", "", transcript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vd := req["videoData"].(map[string]any)
	if req["agentType"] != "blog" || vd["transcription"] != "hello world" {
		t.Errorf("request = %v", req)
	}

	tests := []struct {
		name, kind, title string
	}{
		{"unknown type", "podcast", "x"},
		{"thumbnail", "thumbnail", "x"},
		{"no context", "title", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildGenerateRequest(tt.kind, tt.title, ""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUploadRequiresProject(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"upload", "clip.mp4"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--project") {
		t.Errorf("error = %v, want --project required", err)
	}
}

func TestSplitTags(t *testing.T) {
	if got := splitTags(" "); got != nil {
		t.Errorf("splitTags(blank) = %v, want nil", got)
	}
	got := splitTags("go, tutorial ,shorts")
	if strings.Join(got, "|") != "go|tutorial|shorts" {
		t.Errorf("splitTags = %v", got)
	}
}

func TestFormatProject(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	line := formatProject(storage.Project{
		ID:       "0123456789abcdef",
		Title:    "Launch",
		Status:   storage.ProjectArchived,
		IsPublic: true,
		Stats:    storage.ProjectStats{VideoCount: 2, AgentCount: 5},
	})
	for _, want := range []string{"01234567", "Launch", "2 videos, 5 agents", "[archived]", "[shared]"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "hello"); result != "hello" {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "hello"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestProgressPrinterSteps(t *testing.T) {
	old, oldColor := statusOut, noColor
	defer func() { statusOut, noColor = old, oldColor }()
	var buf bytes.Buffer
	statusOut, noColor = &buf, true

	p := progressPrinter()
	for _, v := range []float64{0.1, 0.12, 0.2, 0.4, 0.45, 1.0} {
		p(v)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q, want 4 steps", lines)
	}
	if !strings.HasSuffix(lines[3], "100%") {
		t.Errorf("last line = %q, want 100%%", lines[3])
	}
}
