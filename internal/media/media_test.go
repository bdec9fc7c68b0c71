package media

import (
	"strings"
	"testing"
)

func TestValidateVideoFile(t *testing.T) {
	tests := []struct {
		name      string
		file      FileInfo
		wantValid bool
		wantErr   string
	}{
		{"mp4 ok", FileInfo{Name: "a.mp4", Size: 10 << 20, MIMEType: "video/mp4"}, true, ""},
		{"mov ok", FileInfo{Name: "a.mov", Size: 1 << 20, MIMEType: "video/quicktime"}, true, ""},
		{"bare quicktime ok", FileInfo{Name: "a.mov", Size: 1 << 20, MIMEType: "quicktime"}, true, ""},
		{"avi ok", FileInfo{Name: "a.avi", Size: 1 << 20, MIMEType: "video/x-msvideo"}, true, ""},
		{"webm ok", FileInfo{Name: "a.webm", Size: 1 << 20, MIMEType: "video/webm"}, true, ""},
		{"exactly limit", FileInfo{Name: "a.mp4", Size: MaxFileSize, MIMEType: "video/mp4"}, true, ""},
		{"too large", FileInfo{Name: "a.mp4", Size: MaxFileSize + 1, MIMEType: "video/mp4"}, false, "size"},
		{"wrong type", FileInfo{Name: "a.mkv", Size: 1 << 20, MIMEType: "video/x-matroska"}, false, "file type"},
		{"image", FileInfo{Name: "a.png", Size: 1 << 20, MIMEType: "image/png"}, false, "file type"},
		{"m4v", FileInfo{Name: "a.m4v", Size: 10 << 20, MIMEType: "video/x-m4v"}, false, "file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateVideoFile(tt.file)
			if got.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (errors %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			if tt.wantErr == "" {
				return
			}
			found := false
			for _, e := range got.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", got.Errors, tt.wantErr)
			}
		})
	}
}

func TestDetectType(t *testing.T) {
	if got := DetectType("clip.MOV", nil); got != "video/quicktime" {
		t.Errorf("DetectType(clip.MOV) = %q, want video/quicktime", got)
	}
	if got := DetectType("clip.webm", nil); got != "video/webm" {
		t.Errorf("DetectType(clip.webm) = %q, want video/webm", got)
	}
	if got := DetectType("noext", nil); got != "application/octet-stream" {
		t.Errorf("DetectType(noext) = %q, want application/octet-stream", got)
	}
}

const sampleProbe = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1"},
    {"codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000", "bit_rate": "128000"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "62.500000", "size": "10485760", "bit_rate": "1342177"}
}`

func TestParseProbeJSON(t *testing.T) {
	md, err := ParseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("ParseProbeJSON: %v", err)
	}
	if md.Duration != 62.5 {
		t.Errorf("Duration = %v, want 62.5", md.Duration)
	}
	if md.Width != 1920 || md.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", md.Width, md.Height)
	}
	if md.FrameRate != 29.97 {
		t.Errorf("FrameRate = %v, want 29.97", md.FrameRate)
	}
	if md.Codec != "h264" || md.Format != "mov" {
		t.Errorf("codec/format = %q/%q", md.Codec, md.Format)
	}
	if md.FileSize != 10485760 {
		t.Errorf("FileSize = %d", md.FileSize)
	}
	if md.Audio == nil || md.Audio.Channels != 2 || md.Audio.SampleRate != 48000 {
		t.Errorf("Audio = %+v", md.Audio)
	}
}

func TestParseProbeJSONFormatOnly(t *testing.T) {
	md, err := ParseProbeJSON([]byte(`{"format": {"duration": "5.0"}}`))
	if err != nil {
		t.Fatalf("ParseProbeJSON: %v", err)
	}
	if md.Duration != 5 || md.Audio != nil || md.Codec != "" {
		t.Errorf("md = %+v", md)
	}
	if _, err := ParseProbeJSON([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"video/mp4":                ".mp4",
		"video/quicktime":          ".mov",
		"quicktime":                ".mov",
		"video/x-msvideo":          ".avi",
		"video/webm; codecs=vp9":   ".webm",
		"application/octet-stream": ".mp4",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}
