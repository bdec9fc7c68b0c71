package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/llm"
)

const (
	// ThumbnailSize is the 16:9 landscape size requested from the image model.
	ThumbnailSize = "1792x1024"

	defaultActionTimeout = 30 * time.Second
	maxThumbnailFrames   = 4
)

// Model is the hosted model API. Implemented by llm.Client.
type Model interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
	GenerateImage(ctx context.Context, req llm.ImageRequest) (string, error)
}

type Options struct {
	TextModel   string
	VisionModel string
	ImageModel  string
	// ActionTimeout bounds every model call. Zero uses 30s.
	ActionTimeout time.Duration
}

// Generator turns a Request into a cleaned draft.
type Generator struct {
	model  Model
	opts   Options
	logger *slog.Logger
}

func New(model Model, opts Options) *Generator {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.TextModel == "" {
		opts.TextModel = "gpt-4o-mini"
	}
	if opts.VisionModel == "" {
		opts.VisionModel = "gpt-4o"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "dall-e-3"
	}
	return &Generator{model: model, opts: opts, logger: slog.Default()}
}

// Generate validates req, calls the model and cleans the answer. Invalid
// requests fail with an error wrapping ErrInvalidRequest before any model
// call is made.
func (g *Generator) Generate(ctx context.Context, req Request) (Response, error) {
	if err := Validate(req).Err(); err != nil {
		return Response{}, err
	}

	prompt := BuildPrompt(req)
	if req.AgentType == Thumbnail {
		return g.thumbnail(ctx, req, prompt)
	}

	p := ParamsFor(req.AgentType)
	raw, err := g.complete(ctx, llm.ChatRequest{
		Model: g.opts.TextModel,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("generating %s: %w", req.AgentType, err)
	}

	content := Clean(raw)
	if content == "" {
		return Response{}, apperr.New(apperr.AIGeneration, "The model returned an empty draft.")
	}
	return Response{Content: content, Prompt: prompt}, nil
}

// thumbnail derives a concept from the frames with the vision model, then
// renders it with the image model.
func (g *Generator) thumbnail(ctx context.Context, req Request, prompt string) (Response, error) {
	parts := []llm.ContentPart{llm.TextPart(prompt)}
	added := 0
	for _, f := range req.VideoFrames {
		if strings.TrimSpace(f.DataURL) == "" {
			continue
		}
		parts = append(parts, llm.ImagePart(f.DataURL))
		added++
		if added == maxThumbnailFrames {
			break
		}
	}

	p := ParamsFor(Thumbnail)
	raw, err := g.complete(ctx, llm.ChatRequest{
		Model: g.opts.VisionModel,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("generating thumbnail concept: %w", err)
	}
	concept := Clean(raw)
	if concept == "" {
		return Response{}, apperr.New(apperr.AIGeneration, "The model returned an empty thumbnail concept.")
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.ActionTimeout)
	defer cancel()
	imageURL, err := g.model.GenerateImage(ctx, llm.ImageRequest{
		Model:   g.opts.ImageModel,
		Prompt:  thumbnailImagePrompt(concept, req.VideoData.Title),
		Size:    ThumbnailSize,
		Quality: "standard",
	})
	if err != nil {
		return Response{}, fmt.Errorf("generating thumbnail image: %w", err)
	}

	return Response{
		Content:  concept,
		Prompt:   prompt,
		ImageURL: imageURL,
		Concept:  concept,
	}, nil
}

// Chat runs a free-form completion with the text model under the action
// timeout. Used by refinement.
func (g *Generator) Chat(ctx context.Context, messages []llm.Message, p Params) (string, error) {
	return g.complete(ctx, llm.ChatRequest{
		Model:       g.opts.TextModel,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
}

func (g *Generator) complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.ActionTimeout)
	defer cancel()

	start := time.Now()
	out, err := g.model.Complete(ctx, req)
	g.logger.Debug("model call", "model", req.Model, "duration", time.Since(start), "error", err)
	return out, err
}
