// Package upload runs the client side of video ingestion: validate, read
// basic metadata, transfer the bytes, create the record and finish with a
// full metadata pass.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/media"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// Progress checkpoints reported through Options.OnProgress.
const (
	StageBasicMetadata = 0.1
	StageUploadSlot    = 0.2
	StageTransfer      = 0.3
	StageRecordCreated = 0.5
	StageFullMetadata  = 0.6
	StageDone          = 1.0
)

// Slot is a single-use upload destination.
type Slot struct {
	UploadURL string `json:"uploadUrl"`
	StorageID string `json:"storageId"`
}

type NewVideo struct {
	ProjectID      string                `json:"projectId"`
	Title          string                `json:"title"`
	StorageID      string                `json:"storageId"`
	CanvasPosition canvas.Position       `json:"canvasPosition"`
	Metadata       storage.VideoMetadata `json:"metadata"`
}

// Backend is the server the pipeline talks to.
type Backend interface {
	RequestUpload(ctx context.Context, contentType string, size int64) (Slot, error)
	CreateVideo(ctx context.Context, v NewVideo) (storage.Video, error)
	UpdateVideoMetadata(ctx context.Context, videoID string, md storage.VideoMetadata) error
	ScheduleTranscription(ctx context.Context, videoID, provider string) error
}

type Options struct {
	ProjectID string
	// Title defaults to the file name without extension.
	Title          string
	CanvasPosition canvas.Position
	AutoTranscribe bool
	Provider       string
	// OnProgress receives non-decreasing values ending at 1.0.
	OnProgress func(p float64)
}

type Pipeline struct {
	backend Backend
	prober  media.Prober
	client  *http.Client
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline. A nil client uses one with a 10 minute
// timeout for the byte transfer.
func NewPipeline(backend Backend, prober media.Prober, client *http.Client) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Pipeline{backend: backend, prober: prober, client: client, logger: slog.Default()}
}

// Inspect validates the file at path and returns its description.
func Inspect(path string) (media.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.FileInfo{}, apperr.Wrap(apperr.Validation, err, fmt.Sprintf("Cannot open %s.", filepath.Base(path)))
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return media.FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)

	info := media.FileInfo{
		Name:     filepath.Base(path),
		Size:     st.Size(),
		MIMEType: media.DetectType(path, head[:n]),
	}
	if res := media.ValidateVideoFile(info); !res.IsValid {
		return info, apperr.Validationf("%s", strings.Join(res.Errors, "; "))
	}
	return info, nil
}

// UploadVideo runs every stage in order. Failures before the record exists
// are fatal; a failed full metadata pass keeps the basic metadata.
func (p *Pipeline) UploadVideo(ctx context.Context, path string, opts Options) (storage.Video, error) {
	prog := newTracker(opts.OnProgress)

	info, err := Inspect(path)
	if err != nil {
		return storage.Video{}, err
	}

	basic, err := p.prober.Basic(ctx, path)
	if err != nil {
		p.logger.Warn("basic metadata extraction failed", "file", info.Name, "error", err)
		basic = storage.VideoMetadata{}
	}
	basic.FileSize = info.Size
	if basic.Format == "" {
		basic.Format = info.MIMEType
	}
	prog.report(StageBasicMetadata)

	slot, err := p.backend.RequestUpload(ctx, info.MIMEType, info.Size)
	if err != nil {
		return storage.Video{}, fmt.Errorf("requesting upload slot: %w", err)
	}
	prog.report(StageUploadSlot)

	prog.report(StageTransfer)
	if err := p.transfer(ctx, path, info, slot.UploadURL, prog); err != nil {
		return storage.Video{}, err
	}

	title := opts.Title
	if title == "" {
		title = strings.TrimSuffix(info.Name, filepath.Ext(info.Name))
	}
	video, err := p.backend.CreateVideo(ctx, NewVideo{
		ProjectID:      opts.ProjectID,
		Title:          title,
		StorageID:      slot.StorageID,
		CanvasPosition: opts.CanvasPosition,
		Metadata:       basic,
	})
	if err != nil {
		return storage.Video{}, fmt.Errorf("creating video record: %w", err)
	}
	prog.report(StageRecordCreated)

	if opts.AutoTranscribe {
		if err := p.backend.ScheduleTranscription(ctx, video.ID, opts.Provider); err != nil {
			p.logger.Warn("auto transcription not scheduled", "video_id", video.ID, "error", err)
		}
	}

	prog.report(StageFullMetadata)
	full, err := p.prober.Probe(ctx, path)
	if err == nil {
		full.FileSize = info.Size
		prog.report(0.8)
		if err = p.backend.UpdateVideoMetadata(ctx, video.ID, full); err == nil {
			video.Metadata = full
		}
	}
	if err != nil {
		p.logger.Warn("full metadata extraction failed, keeping basic metadata", "video_id", video.ID, "error", err)
		if uerr := p.backend.UpdateVideoMetadata(ctx, video.ID, basic); uerr != nil {
			p.logger.Warn("persisting basic metadata failed", "video_id", video.ID, "error", uerr)
		}
		video.Metadata = basic
	}
	prog.report(StageDone)
	return video, nil
}

// transfer PUTs the file to url with its content type. Any non-2xx answer
// is fatal.
func (p *Pipeline) transfer(ctx context.Context, path string, info media.FileInfo, url string, prog *tracker) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	body := &countingReader{r: f, total: info.Size, onRead: func(frac float64) {
		prog.report(StageTransfer + frac*(StageRecordCreated-StageTransfer-0.01))
	}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.ContentLength = info.Size
	req.Header.Set("Content-Type", info.MIMEType)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperr.Wrap(apperr.Upload, err, "Upload failed. Check your connection and try again.")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := apperr.New(apperr.Upload, fmt.Sprintf("Upload failed: %s", resp.Status))
		e.StatusCode = resp.StatusCode
		return e
	}
	return nil
}

// tracker forwards progress values, dropping any that would go backwards.
type tracker struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func newTracker(fn func(float64)) *tracker {
	return &tracker{fn: fn}
}

func (t *tracker) report(v float64) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if v < t.last {
		return
	}
	t.last = v
	t.fn(v)
}

type countingReader struct {
	r      io.Reader
	total  int64
	read   int64
	onRead func(frac float64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.total > 0 && n > 0 {
		c.onRead(float64(c.read) / float64(c.total))
	}
	return n, err
}
