package refine

import (
	"strings"
	"testing"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

func TestExtractUpdatedDraft(t *testing.T) {
	tests := []struct {
		name     string
		response string
		typ      generate.AgentType
		want     string
	}{
		{
			name:     "marker present",
			response: "Sure, here's a punchier one.\n\nUPDATED TITLE:\n  Code Faster Today  ",
			typ:      generate.Title,
			want:     "Code Faster Today",
		},
		{
			name:     "marker missing keeps draft",
			response: "I think the current title already works well.",
			typ:      generate.Title,
			want:     "old draft",
		},
		{
			name:     "case sensitive",
			response: "updated title: lower case marker",
			typ:      generate.Title,
			want:     "old draft",
		},
		{
			name:     "other type marker ignored",
			response: "UPDATED DESCRIPTION: wrong type",
			typ:      generate.Title,
			want:     "old draft",
		},
		{
			name:     "empty after marker clears draft",
			response: "UPDATED TWEETS:   \n ",
			typ:      generate.Tweets,
			want:     "",
		},
		{
			name:     "multiline content",
			response: "Done.\nUPDATED LINKEDIN:\nLine one.\n\nLine two?",
			typ:      generate.LinkedIn,
			want:     "Line one.\n\nLine two?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractUpdatedDraft(tt.response, tt.typ, "old draft"); got != tt.want {
				t.Errorf("ExtractUpdatedDraft = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	msgs := BuildMessages(Input{
		AgentType:    generate.Description,
		CurrentDraft: "Current description text",
		History: []storage.ChatMessage{
			{Role: "user", Message: "make it shorter"},
			{Role: "ai", Message: "Here you go"},
		},
		Transcription: strings.Repeat("t", 1200),
		Message:       "add hashtags",
	})

	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	sys := msgs[0].Content.(string)
	if !strings.Contains(sys, "Current description text") {
		t.Error("system prompt missing current draft")
	}
	if !strings.Contains(sys, "UPDATED DESCRIPTION:") {
		t.Error("system prompt missing marker instruction")
	}
	if strings.Contains(sys, strings.Repeat("t", 1001)) {
		t.Error("transcription not truncated")
	}
	if strings.Index(sys, "Current description") > strings.Index(sys, "transcription excerpt") {
		t.Error("draft should precede transcription")
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("msgs[%d].Role = %q, want %q", i, m.Role, wantRoles[i])
		}
	}
	if msgs[3].Content != "add hashtags" {
		t.Errorf("last message = %v", msgs[3].Content)
	}
}
