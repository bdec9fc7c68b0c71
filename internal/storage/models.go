package storage

import (
	"errors"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Project statuses.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
	ProjectDeleted  = "deleted"
)

// Transcription statuses.
const (
	TranscriptionIdle       = "idle"
	TranscriptionProcessing = "processing"
	TranscriptionCompleted  = "completed"
	TranscriptionFailed     = "failed"
)

// Agent statuses.
const (
	AgentIdle       = "idle"
	AgentGenerating = "generating"
	AgentReady      = "ready"
	AgentError      = "error"
)

type Project struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Settings     ProjectSettings `json:"settings"`
	Stats        ProjectStats    `json:"stats"`
	IsPublic     bool            `json:"isPublic"`
	ShareID      string          `json:"shareId,omitempty"`
	Tags         []string        `json:"tags"`
	Category     string          `json:"category,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	LastOpenedAt time.Time       `json:"lastOpenedAt"`
}

type ProjectSettings struct {
	AI            AISettings           `json:"ai"`
	Canvas        CanvasSettings       `json:"canvas"`
	Video         VideoSettings        `json:"video"`
	Export        ExportSettings       `json:"export"`
	Notifications NotificationSettings `json:"notifications"`
}

type AISettings struct {
	AutoGenerate bool   `json:"autoGenerate"`
	DefaultTone  string `json:"defaultTone,omitempty"`
}

type CanvasSettings struct {
	SnapToGrid  bool `json:"snapToGrid"`
	ShowMinimap bool `json:"showMinimap"`
}

type VideoSettings struct {
	AutoTranscribe        bool   `json:"autoTranscribe"`
	TranscriptionProvider string `json:"transcriptionProvider,omitempty"`
}

type ExportSettings struct {
	Format string `json:"format,omitempty"`
}

type NotificationSettings struct {
	OnGenerationComplete    bool `json:"onGenerationComplete"`
	OnTranscriptionComplete bool `json:"onTranscriptionComplete"`
}

// DefaultProjectSettings returns the settings a new project starts with.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		Canvas:        CanvasSettings{SnapToGrid: true, ShowMinimap: true},
		Video:         VideoSettings{TranscriptionProvider: "openai"},
		Export:        ExportSettings{Format: "markdown"},
		Notifications: NotificationSettings{OnGenerationComplete: true, OnTranscriptionComplete: true},
	}
}

type ProjectStats struct {
	VideoCount      int       `json:"videoCount"`
	AgentCount      int       `json:"agentCount"`
	GenerationCount int       `json:"generationCount"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
}

type AudioInfo struct {
	Codec      string `json:"codec,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	BitRate    int64  `json:"bitRate,omitempty"`
}

type VideoMetadata struct {
	Duration  float64    `json:"duration"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	FrameRate float64    `json:"frameRate,omitempty"`
	BitRate   int64      `json:"bitRate,omitempty"`
	Codec     string     `json:"codec,omitempty"`
	Format    string     `json:"format,omitempty"`
	FileSize  int64      `json:"fileSize,omitempty"`
	Audio     *AudioInfo `json:"audio,omitempty"`
}

type Video struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	ProjectID           string          `json:"projectId"`
	Title               string          `json:"title"`
	StorageID           string          `json:"storageId,omitempty"`
	CanvasPosition      canvas.Position `json:"canvasPosition"`
	Metadata            VideoMetadata   `json:"metadata"`
	Transcription       string          `json:"transcription,omitempty"`
	TranscriptionStatus string          `json:"transcriptionStatus"`
	TranscriptionError  string          `json:"transcriptionError,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "ai"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Agent struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	VideoID        string          `json:"videoId"`
	Type           string          `json:"type"`
	Draft          string          `json:"draft"`
	Status         string          `json:"status"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	Connections    []string        `json:"connections"`
	ChatHistory    []ChatMessage   `json:"chatHistory"`
	CanvasPosition canvas.Position `json:"canvasPosition"`
	ThumbnailURL   string          `json:"thumbnailUrl,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type CanvasState struct {
	UserID    string       `json:"userId"`
	ProjectID string       `json:"projectId"`
	State     canvas.State `json:"state"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Share struct {
	ShareID   string       `json:"shareId"`
	ProjectID string       `json:"projectId"`
	UserID    string       `json:"userId"`
	Title     string       `json:"title"`
	Snapshot  canvas.State `json:"canvasState"`
	ViewCount int          `json:"viewCount"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Job is one unit of background work on a video or agent, named by
// SubjectID. Jobs run at most once.
type Job struct {
	ID          string
	Type        string
	SubjectID   string
	PayloadJSON string
	Status      string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
