package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// Prober extracts metadata from a local media file. Basic is a quick
// container-level read; Probe also inspects the streams.
type Prober interface {
	Basic(ctx context.Context, path string) (storage.VideoMetadata, error)
	Probe(ctx context.Context, path string) (storage.VideoMetadata, error)
}

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	Bin     string
	Timeout time.Duration
}

func NewFFProbe() *FFProbe {
	return &FFProbe{Bin: "ffprobe", Timeout: 30 * time.Second}
}

func (p *FFProbe) Basic(ctx context.Context, path string) (storage.VideoMetadata, error) {
	out, err := p.run(ctx, "-v", "quiet", "-print_format", "json", "-show_format", path)
	if err != nil {
		return storage.VideoMetadata{}, err
	}
	return ParseProbeJSON(out)
}

func (p *FFProbe) Probe(ctx context.Context, path string) (storage.VideoMetadata, error) {
	out, err := p.run(ctx, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		return storage.VideoMetadata{}, err
	}
	return ParseProbeJSON(out)
}

func (p *FFProbe) run(ctx context.Context, args ...string) ([]byte, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.Error
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("ffprobe not available: %w", err)
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		BitRate      string `json:"bit_rate"`
		Channels     int    `json:"channels"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
}

// ParseProbeJSON converts ffprobe's JSON output into video metadata. The
// first video and first audio stream are used.
func ParseProbeJSON(data []byte) (storage.VideoMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return storage.VideoMetadata{}, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	md := storage.VideoMetadata{
		Duration: parseFloat(out.Format.Duration),
		FileSize: parseInt(out.Format.Size),
		BitRate:  parseInt(out.Format.BitRate),
		Format:   firstField(out.Format.FormatName),
	}

	videoSeen := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if videoSeen {
				continue
			}
			videoSeen = true
			md.Codec = s.CodecName
			md.Width = s.Width
			md.Height = s.Height
			md.FrameRate = parseRate(s.AvgFrameRate)
			if md.FrameRate == 0 {
				md.FrameRate = parseRate(s.RFrameRate)
			}
		case "audio":
			if md.Audio != nil {
				continue
			}
			md.Audio = &storage.AudioInfo{
				Codec:      s.CodecName,
				Channels:   s.Channels,
				SampleRate: int(parseInt(s.SampleRate)),
				BitRate:    parseInt(s.BitRate),
			}
		}
	}
	return md, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int64 {
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

// parseRate turns "30000/1001" into frames per second, rounded to two places.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	r := n / d
	return float64(int(r*100+0.5)) / 100
}

func firstField(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return first
}
