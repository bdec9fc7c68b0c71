package canvas

import (
	"encoding/json"
	"fmt"
)

// NodeType discriminates the node payloads on a canvas.
type NodeType string

const (
	TypeVideo         NodeType = "video"
	TypeTranscription NodeType = "transcription"
	TypeMoodboard     NodeType = "moodboard"
	TypeAgent         NodeType = "agent"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case TypeVideo, TypeTranscription, TypeMoodboard, TypeAgent:
		return true
	}
	return false
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the type-specific payload of a node. Only the types in this
// package implement it.
type NodeData interface {
	Type() NodeType
	clone() NodeData
}

type VideoData struct {
	VideoID             string  `json:"videoId"`
	Title               string  `json:"title"`
	ThumbnailURL        string  `json:"thumbnailUrl,omitempty"`
	Duration            float64 `json:"duration,omitempty"`
	TranscriptionStatus string  `json:"transcriptionStatus,omitempty"`
}

func (d *VideoData) Type() NodeType { return TypeVideo }
func (d *VideoData) clone() NodeData {
	c := *d
	return &c
}

type AgentData struct {
	AgentID     string   `json:"agentId"`
	AgentType   string   `json:"agentType"`
	Draft       string   `json:"draft,omitempty"`
	Status      string   `json:"status,omitempty"`
	Connections []string `json:"connections,omitempty"`
}

func (d *AgentData) Type() NodeType { return TypeAgent }
func (d *AgentData) clone() NodeData {
	c := *d
	c.Connections = append([]string(nil), d.Connections...)
	return &c
}

// TranscriptionData is a manually supplied transcript or script attached to
// the canvas. It feeds generation as a manual transcription.
type TranscriptionData struct {
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func (d *TranscriptionData) Type() NodeType { return TypeTranscription }
func (d *TranscriptionData) clone() NodeData {
	c := *d
	return &c
}

type Reference struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type MoodboardData struct {
	Title      string      `json:"title,omitempty"`
	References []Reference `json:"references,omitempty"`
}

func (d *MoodboardData) Type() NodeType { return TypeMoodboard }
func (d *MoodboardData) clone() NodeData {
	c := *d
	c.References = append([]Reference(nil), d.References...)
	return &c
}

type Node struct {
	ID       string
	Position Position
	Data     NodeData
}

// Type returns the node's discriminator, or "" when it carries no data.
func (n Node) Type() NodeType {
	if n.Data == nil {
		return ""
	}
	return n.Data.Type()
}

func (n Node) clone() Node {
	c := n
	if n.Data != nil {
		c.Data = n.Data.clone()
	}
	return c
}

type wireNode struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Data == nil {
		return nil, fmt.Errorf("node %s has no data", n.ID)
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireNode{ID: n.ID, Type: n.Data.Type(), Position: n.Position, Data: data})
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := newData(w.Type)
	if err != nil {
		return err
	}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, data); err != nil {
			return fmt.Errorf("decoding %s node data: %w", w.Type, err)
		}
	}
	n.ID = w.ID
	n.Position = w.Position
	n.Data = data
	return nil
}

func newData(t NodeType) (NodeData, error) {
	switch t {
	case TypeVideo:
		return &VideoData{}, nil
	case TypeAgent:
		return &AgentData{}, nil
	case TypeTranscription:
		return &TranscriptionData{}, nil
	case TypeMoodboard:
		return &MoodboardData{}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", t)
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// State is the persisted form of a canvas.
type State struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// DefaultViewport is the viewport of an empty canvas.
var DefaultViewport = Viewport{X: 0, Y: 0, Zoom: 1}
