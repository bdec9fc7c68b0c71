package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
)

// MCPDeps holds dependencies for the MCP server. The stdio transport has no
// caller identity, so every call acts as UserID.
type MCPDeps struct {
	Studio *studio.Service
	UserID string
}

func (d MCPDeps) user() string {
	if d.UserID == "" {
		return DefaultUserID
	}
	return d.UserID
}

// NewMCPServer creates an MCP server with the youpac tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"youpac",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("youpac: AI content drafts (titles, descriptions, thumbnails, posts) for your videos."),
		server.WithRecovery(),
	)

	agentTypes := make([]string, len(generate.AgentTypes))
	for i, t := range generate.AgentTypes {
		agentTypes[i] = string(t)
	}

	s.AddTool(
		mcp.NewTool("generate_content",
			mcp.WithDescription("Generate a draft for a video from its title and/or transcription. Thumbnails need frames and are not available here."),
			mcp.WithString("agent_type", mcp.Description("Kind of content"), mcp.Required(), mcp.Enum(agentTypes...)),
			mcp.WithString("title", mcp.Description("Video title")),
			mcp.WithString("transcription", mcp.Description("Video transcription")),
			mcp.WithString("script", mcp.Description("Manual script or notes")),
		),
		mcpGenerateContent(deps),
	)

	s.AddTool(
		mcp.NewTool("refine_draft",
			mcp.WithDescription("Ask the model to revise an agent's draft. The stored draft changes only when the model returns an updated version."),
			mcp.WithString("agent_id", mcp.Description("Agent id"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Instruction, e.g. \"make it shorter\""), mcp.Required()),
		),
		mcpRefineDraft(deps),
	)

	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List projects with their stats."),
			mcp.WithString("status", mcp.Description("active or archived; empty lists both")),
		),
		mcpListProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("set_profile_field",
			mcp.WithDescription("Update one field of the creator profile used as generation context."),
			mcp.WithString("key", mcp.Description("Profile field key"), mcp.Required(), mcp.Enum(profile.Keys...)),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetProfileField(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"creator://profile",
			"Creator Profile",
			mcp.WithResourceDescription("Channel name, niche, tone and audience as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpGenerateContent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("agent_type")
		if err != nil {
			return mcpError("agent_type is required"), nil
		}
		t := generate.AgentType(kind)
		if !t.Valid() {
			return mcpError(fmt.Sprintf("unknown agent_type %q", kind)), nil
		}
		if t == generate.Thumbnail {
			return mcpError("thumbnails need video frames; use the HTTP API"), nil
		}

		gr := generate.Request{
			AgentType: t,
			VideoData: generate.VideoData{
				Title:         req.GetString("title", ""),
				Transcription: req.GetString("transcription", ""),
			},
		}
		if script := req.GetString("script", ""); script != "" {
			gr.VideoData.ManualTranscriptions = []generate.ManualTranscription{{Text: script}}
		}

		resp, err := deps.Studio.Generate(ctx, deps.user(), gr)
		if err != nil {
			return mcpError(apperr.UserMessage(err)), nil
		}
		return mcpText(resp.Content), nil
	}
}

func mcpRefineDraft(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agent_id")
		if err != nil {
			return mcpError("agent_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		res, err := deps.Studio.Chat(ctx, deps.user(), agentID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("refine failed: %s", apperr.UserMessage(err))), nil
		}

		b, err := json.Marshal(map[string]any{
			"reply":   res.Reply,
			"updated": res.Updated,
			"draft":   res.Agent.Draft,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := deps.Studio.ListProjects(deps.user(), req.GetString("status", ""))
		if err != nil {
			return mcpError(apperr.UserMessage(err)), nil
		}
		if len(projects) == 0 {
			return mcpText("[]"), nil
		}

		type projectSummary struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Status      string `json:"status"`
			Videos      int    `json:"videos"`
			Agents      int    `json:"agents"`
			Generations int    `json:"generations"`
			UpdatedAt   string `json:"updated_at"`
		}

		out := make([]projectSummary, len(projects))
		for i, p := range projects {
			out[i] = projectSummary{
				ID:          p.ID,
				Title:       p.Title,
				Status:      p.Status,
				Videos:      p.Stats.VideoCount,
				Agents:      p.Stats.AgentCount,
				Generations: p.Stats.GenerationCount,
				UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
			}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetProfileField(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Studio.Profiles().SetField(deps.user(), key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set profile field: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Studio.Profiles().GetProfile(deps.user())
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
