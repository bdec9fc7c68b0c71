// Package refine applies free-text chat instructions to an agent's draft.
//
// The model is asked to answer conversationally and then emit a line
// "UPDATED <TYPE>:" followed by the replacement draft. Everything after the
// marker becomes the new draft. When the marker is missing the current draft
// is kept.
package refine

import (
	"fmt"
	"strings"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/llm"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

const transcriptionExcerptChars = 1000

// Params are the sampling settings for refinement calls.
var Params = generate.Params{Temperature: 0.7, MaxTokens: 1500}

var guidance = map[generate.AgentType]string{
	generate.Title:       "Titles stay under 60 characters. Do not use clickbait or all caps.",
	generate.Description: "Descriptions open with a hook, keep key points scannable and end with a call to action.",
	generate.Thumbnail:   "Thumbnail concepts describe one clear visual composition with at most 3 words of overlay text.",
	generate.Tweets:      "Threads have 3 to 5 numbered tweets, each under 280 characters.",
	generate.Blog:        "Blog posts use Markdown headings and keep the author's voice.",
	generate.LinkedIn:    "LinkedIn posts are professional, first person and end with a question.",
}

// Marker returns the sentinel that precedes the updated draft.
func Marker(t generate.AgentType) string {
	return "UPDATED " + strings.ToUpper(string(t)) + ":"
}

// Input is one refinement turn.
type Input struct {
	AgentType     generate.AgentType
	CurrentDraft  string
	History       []storage.ChatMessage
	Transcription string
	Message       string
}

// BuildMessages assembles the chat: system guidance, the current draft,
// prior turns in order, an optional transcription excerpt and finally the
// new user message.
func BuildMessages(in Input) []llm.Message {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are helping a YouTube creator refine their %s.\n", strings.ToLower(in.AgentType.Label()))
	if g := guidance[in.AgentType]; g != "" {
		sys.WriteString(g)
		sys.WriteString("\n")
	}
	fmt.Fprintf(&sys, "\nCurrent %s:\n%s\n", strings.ToLower(in.AgentType.Label()), in.CurrentDraft)
	if t := strings.TrimSpace(in.Transcription); t != "" {
		sys.WriteString("\nVideo transcription excerpt:\n")
		sys.WriteString(generate.Excerpt(t, transcriptionExcerptChars))
		sys.WriteString("\n")
	}
	fmt.Fprintf(&sys, "\nReply briefly to the creator. If you change the content, finish with a line %q followed by the complete new version and nothing else.", Marker(in.AgentType))

	msgs := []llm.Message{{Role: "system", Content: sys.String()}}
	for _, h := range in.History {
		role := h.Role
		if role != "user" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Message})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: in.Message})
	return msgs
}

// ExtractUpdatedDraft returns the text after the type's marker, trimmed,
// even when that leaves nothing. The match is case sensitive. Without a
// marker, current is returned unchanged.
func ExtractUpdatedDraft(response string, t generate.AgentType, current string) string {
	marker := Marker(t)
	idx := strings.Index(response, marker)
	if idx < 0 {
		return current
	}
	return strings.TrimSpace(response[idx+len(marker):])
}
