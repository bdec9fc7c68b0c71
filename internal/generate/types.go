// Package generate produces agent drafts (titles, descriptions, thumbnails,
// tweet threads, blog and LinkedIn posts) from a video's context through a
// hosted model.
package generate

import (
	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
)

type AgentType string

const (
	Title       AgentType = "title"
	Description AgentType = "description"
	Thumbnail   AgentType = "thumbnail"
	Tweets      AgentType = "tweets"
	Blog        AgentType = "blog"
	LinkedIn    AgentType = "linkedin"
)

// AgentTypes lists every supported type.
var AgentTypes = []AgentType{Title, Description, Thumbnail, Tweets, Blog, LinkedIn}

func (t AgentType) Valid() bool {
	for _, a := range AgentTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Label is the human readable name used in prompts.
func (t AgentType) Label() string {
	switch t {
	case Title:
		return "Title"
	case Description:
		return "Description"
	case Thumbnail:
		return "Thumbnail concept"
	case Tweets:
		return "Tweet thread"
	case Blog:
		return "Blog post"
	case LinkedIn:
		return "LinkedIn post"
	}
	return string(t)
}

// ManualTranscription is a script or notes attached through a
// transcription node.
type ManualTranscription struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type VideoData struct {
	Title                string                `json:"title,omitempty"`
	Transcription        string                `json:"transcription,omitempty"`
	ManualTranscriptions []ManualTranscription `json:"manualTranscriptions,omitempty"`
	Duration             float64               `json:"duration,omitempty"`
	Resolution           string                `json:"resolution,omitempty"`
}

// ConnectedOutput is the draft of an upstream agent node.
type ConnectedOutput struct {
	Type    AgentType `json:"type"`
	Content string    `json:"content"`
}

// Frame is a still image captured from the video.
type Frame struct {
	DataURL   string  `json:"dataUrl"`
	Timestamp float64 `json:"timestamp"`
}

// Request is everything a single generation call may draw on.
type Request struct {
	AgentType           AgentType          `json:"agentType"`
	VideoData           VideoData          `json:"videoData"`
	ConnectedOutputs    []ConnectedOutput  `json:"connectedAgentOutputs,omitempty"`
	MoodboardReferences []canvas.Reference `json:"moodboardReferences,omitempty"`
	Profile             *profile.Profile   `json:"profileData,omitempty"`
	VideoFrames         []Frame            `json:"videoFrames,omitempty"`
}

// Response is the cleaned draft plus the prompt that produced it. ImageURL
// and Concept are only set for thumbnails.
type Response struct {
	Content  string `json:"content"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl,omitempty"`
	Concept  string `json:"concept,omitempty"`
}

// Params are the sampling settings for one agent type.
type Params struct {
	Temperature float64
	MaxTokens   int
	// Vision selects the vision capable model.
	Vision bool
}

var params = map[AgentType]Params{
	Title:       {Temperature: 0.8, MaxTokens: 100},
	Description: {Temperature: 0.7, MaxTokens: 500},
	Tweets:      {Temperature: 0.8, MaxTokens: 500},
	Blog:        {Temperature: 0.7, MaxTokens: 2000},
	LinkedIn:    {Temperature: 0.7, MaxTokens: 800},
	Thumbnail:   {Temperature: 0.9, MaxTokens: 400, Vision: true},
}

// ParamsFor returns the sampling settings for t.
func ParamsFor(t AgentType) Params {
	return params[t]
}
