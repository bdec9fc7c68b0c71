package generate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
)

// TranscriptionExcerptChars is how much of a transcript goes into a prompt.
const TranscriptionExcerptChars = 1000

const systemPrompt = "You are an expert YouTube content strategist who writes engaging, accurate content for creators. " +
	"Answer with the requested content only, without preamble or commentary."

var framing = map[AgentType]string{
	Title:       "Generate a compelling YouTube video title for the video described below.",
	Description: "Write a YouTube video description for the video described below.",
	Thumbnail:   "Design a YouTube thumbnail concept for the video described below, using the attached video frames.",
	Tweets:      "Write a Twitter/X thread that promotes the video described below.",
	Blog:        "Write a blog post based on the video described below.",
	LinkedIn:    "Write a LinkedIn post that shares the key insights of the video described below.",
}

var instructions = map[AgentType]string{
	Title: `Requirements:
- At most 60 characters
- Clear, specific and curiosity driven without clickbait
- Return only the title text`,
	Description: `Requirements:
- Open with a two sentence hook that summarizes the value of the video
- Follow with key points or timestamps when the transcript supports them
- End with a call to action and 3 to 5 relevant hashtags
- Return only the description text`,
	Thumbnail: `Requirements:
- Describe one striking visual composition suitable for a 16:9 thumbnail
- Name the focal subject, background, colors, facial expression and any text overlay (3 words or fewer)
- Keep it under 120 words so it can be used as an image generation prompt`,
	Tweets: `Requirements:
- 3 to 5 tweets, each under 280 characters
- Number each tweet (1/, 2/, ...) and separate them with a blank line
- The first tweet is the hook, the last one links back to the video`,
	Blog: `Requirements:
- Markdown with a title, an introduction, 3 to 5 sections with headings and a conclusion
- Expand on the ideas of the video rather than restating the transcript
- 600 to 1200 words`,
	LinkedIn: `Requirements:
- Professional, first person tone
- A strong opening line, 3 to 5 short paragraphs and a question that invites discussion
- At most 3 hashtags at the end`,
}

// BuildPrompt assembles the user prompt for req. Sections appear in a fixed
// order and empty sections are omitted.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(framing[req.AgentType])
	sb.WriteString("\n\n")

	v := req.VideoData
	if title := strings.TrimSpace(v.Title); title != "" {
		fmt.Fprintf(&sb, "Video title: %s\n", title)
	}
	if v.Duration > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", formatDuration(v.Duration))
	}
	if v.Resolution != "" {
		fmt.Fprintf(&sb, "Resolution: %s\n", v.Resolution)
	}

	if t := strings.TrimSpace(v.Transcription); t != "" {
		sb.WriteString("\nTranscription excerpt:\n")
		sb.WriteString(Excerpt(t, TranscriptionExcerptChars))
		sb.WriteString("\n")
	}

	if manual := nonEmptyManual(v.ManualTranscriptions); len(manual) > 0 {
		sb.WriteString("\nManual transcriptions:\n")
		for i, m := range manual {
			label := m.Title
			if label == "" {
				label = fmt.Sprintf("Transcription %d", i+1)
			}
			fmt.Fprintf(&sb, "[%s]\n%s\n", label, Excerpt(strings.TrimSpace(m.Text), TranscriptionExcerptChars))
		}
	}

	if outputs := nonEmptyOutputs(req.ConnectedOutputs); len(outputs) > 0 {
		sb.WriteString("\nRelated content from connected nodes:\n")
		for _, o := range outputs {
			fmt.Fprintf(&sb, "%s:\n%s\n", o.Type.Label(), strings.TrimSpace(o.Content))
		}
	}

	if refs := req.MoodboardReferences; len(refs) > 0 {
		sb.WriteString("\nMood board references:\n")
		for _, r := range refs {
			sb.WriteString(formatReference(r))
		}
	}

	if req.Profile != nil {
		if summary := profile.Summarize(*req.Profile); summary != "" {
			sb.WriteString("\nCreator profile:\n")
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(instructions[req.AgentType])
	return sb.String()
}

// Excerpt returns the first n characters of s, marking truncation.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatReference(r canvas.Reference) string {
	name := r.Title
	if name == "" {
		name = r.URL
	}
	line := "- " + name
	if r.Title != "" && r.URL != "" {
		line += " (" + r.URL + ")"
	}
	if r.Description != "" {
		line += ": " + r.Description
	}
	return line + "\n"
}

func nonEmptyManual(in []ManualTranscription) []ManualTranscription {
	var out []ManualTranscription
	for _, m := range in {
		if strings.TrimSpace(m.Text) != "" {
			out = append(out, m)
		}
	}
	return out
}

func nonEmptyOutputs(in []ConnectedOutput) []ConnectedOutput {
	var out []ConnectedOutput
	for _, o := range in {
		if strings.TrimSpace(o.Content) != "" {
			out = append(out, o)
		}
	}
	return out
}

// thumbnailImagePrompt turns a concept into the image model prompt.
func thumbnailImagePrompt(concept, title string) string {
	var sb strings.Builder
	sb.WriteString("A high quality YouTube thumbnail in 16:9 landscape format. ")
	sb.WriteString(strings.TrimSpace(concept))
	if title != "" {
		fmt.Fprintf(&sb, " The video is titled %q.", title)
	}
	sb.WriteString(" Bold composition, high contrast, vibrant colors, readable from a small size.")
	return sb.String()
}
