package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingStore wraps the SQLite queue and remembers how each job ended.
type recordingStore struct {
	*storage.Store

	mu        sync.Mutex
	completed []string
	failed    map[string]string
}

func newRecordingStore(t *testing.T) *recordingStore {
	return &recordingStore{Store: openTestStore(t), failed: make(map[string]string)}
}

func (r *recordingStore) CompleteJob(id string) error {
	if err := r.Store.CompleteJob(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, id)
	return nil
}

func (r *recordingStore) FailJob(id, errMsg string) error {
	if err := r.Store.FailJob(id, errMsg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = errMsg
	return nil
}

type videoPayload struct {
	VideoID string `json:"video_id"`
}

func TestWorker_ProcessesTranscriptionJob(t *testing.T) {
	store := newRecordingStore(t)
	id, err := Enqueue(store, TypeTranscribeVideo, "v1", videoPayload{VideoID: "v1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var got string
	w := NewWorker(store, 0)
	w.Handle(TypeTranscribeVideo, func(_ context.Context, raw json.RawMessage) error {
		var p videoPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		got = p.VideoID
		return nil
	})

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}
	if got != "v1" {
		t.Errorf("handler saw video %q, want %q", got, "v1")
	}
	if len(store.completed) != 1 || store.completed[0] != id {
		t.Errorf("completed = %v, want [%s]", store.completed, id)
	}
	open, err := store.HasOpenJob(TypeTranscribeVideo, "v1")
	if err != nil {
		t.Fatalf("HasOpenJob: %v", err)
	}
	if open {
		t.Error("completed job still counts as open")
	}
}

func TestWorker_NoJob(t *testing.T) {
	w := NewWorker(openTestStore(t), 0)
	w.Handle(TypeTranscribeVideo, func(context.Context, json.RawMessage) error { return nil })

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("RunOnce returned true on empty queue")
	}
}

func TestWorker_IgnoresUnregisteredTypes(t *testing.T) {
	store := openTestStore(t)
	if _, err := Enqueue(store, TypeGenerateThumbnail, "a1", map[string]string{"agent_id": "a1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := NewWorker(store, 0)
	w.Handle(TypeTranscribeVideo, func(context.Context, json.RawMessage) error { return nil })

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("worker claimed a job type it has no handler for")
	}
}

func TestEnqueueRequiresSubject(t *testing.T) {
	if _, err := Enqueue(openTestStore(t), TypeTranscribeVideo, "", videoPayload{}); err == nil {
		t.Error("expected error for a job without a subject")
	}
}

func TestWorker_FailureIsTerminal(t *testing.T) {
	store := newRecordingStore(t)
	id, _ := Enqueue(store, TypeGenerateThumbnail, "a1", map[string]string{"agent_id": "a1"})

	var calls atomic.Int32
	w := NewWorker(store, 0)
	w.Handle(TypeGenerateThumbnail, func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return fmt.Errorf("image API unavailable")
	})

	ctx := context.Background()
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if got := store.failed[id]; got != "image API unavailable" {
		t.Errorf("recorded error = %q, want %q", got, "image API unavailable")
	}

	// Nothing is requeued: the agent owner has to generate again.
	if didWork, _ := w.RunOnce(ctx); didWork {
		t.Error("failed job was claimed again")
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestWorker_PanicBecomesFailure(t *testing.T) {
	store := newRecordingStore(t)
	id, _ := Enqueue(store, TypeTranscribeVideo, "v1", videoPayload{VideoID: "v1"})

	w := NewWorker(store, 0)
	w.Handle(TypeTranscribeVideo, func(context.Context, json.RawMessage) error {
		panic("boom")
	})

	didWork, err := w.RunOnce(context.Background())
	if err != nil || !didWork {
		t.Fatalf("RunOnce = %v, %v", didWork, err)
	}
	if got := store.failed[id]; got != "internal error while processing transcribe_video job" {
		t.Errorf("recorded error = %q", got)
	}
}

func TestWorker_RecoverFailsInterruptedJobs(t *testing.T) {
	store := newRecordingStore(t)
	if _, err := Enqueue(store, TypeTranscribeVideo, "v1", videoPayload{VideoID: "v1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := Enqueue(store, TypeTranscribeVideo, "v2", videoPayload{VideoID: "v2"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// The previous process claimed v1 and stopped.
	if job, err := store.ClaimNextJob([]string{TypeTranscribeVideo}); err != nil || job == nil || job.SubjectID != "v1" {
		t.Fatalf("ClaimNextJob = %+v, %v", job, err)
	}

	w := NewWorker(store, 0)
	var handled []string
	w.Handle(TypeTranscribeVideo, func(_ context.Context, raw json.RawMessage) error {
		var p videoPayload
		json.Unmarshal(raw, &p)
		handled = append(handled, p.VideoID)
		return nil
	})

	n, err := w.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Errorf("Recover = %d, want 1", n)
	}
	if open, _ := store.HasOpenJob(TypeTranscribeVideo, "v1"); open {
		t.Error("interrupted job still open after Recover")
	}

	// The job that was still pending runs normally.
	for {
		didWork, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if !didWork {
			break
		}
	}
	if len(handled) != 1 || handled[0] != "v2" {
		t.Errorf("handled = %v, want [v2]", handled)
	}
}

func TestWorker_RunConcurrent(t *testing.T) {
	store := openTestStore(t)

	const total = 20
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("v%d", i)
		if _, err := Enqueue(store, TypeTranscribeVideo, id, videoPayload{VideoID: id}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var processed atomic.Int32
	w := NewWorker(store, 10*time.Millisecond)
	w.Handle(TypeTranscribeVideo, func(_ context.Context, raw json.RawMessage) error {
		var p videoPayload
		json.Unmarshal(raw, &p)
		mu.Lock()
		seen[p.VideoID]++
		mu.Unlock()
		processed.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 4)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for processed.Load() < total && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := processed.Load(); got != total {
		t.Fatalf("processed %d jobs, want %d", got, total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("video %s processed %d times, want 1", id, n)
		}
	}
}
