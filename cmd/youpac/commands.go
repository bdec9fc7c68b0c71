package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/config"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/media"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/upload"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a video into a project",
	Long: `Upload a video into a project.

Examples:
  youpac upload ./intro.mp4 --project 3f0c...
  youpac upload ./intro.mp4 --project 3f0c... --title "Intro" --transcribe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		title, _ := cmd.Flags().GetString("title")
		transcribe, _ := cmd.Flags().GetBool("transcribe")
		provider, _ := cmd.Flags().GetString("provider")
		if projectID == "" {
			return fmt.Errorf("--project is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		v, err := runUpload(cmd.Context(), client, media.NewFFProbe(), args[0], upload.Options{
			ProjectID:      projectID,
			Title:          title,
			AutoTranscribe: transcribe,
			Provider:       provider,
			OnProgress:     progressPrinter(),
		})
		if err != nil {
			return err
		}

		printSuccess("Uploaded %s as video %s", args[0], v.ID)
		if transcribe {
			printStep("Transcription scheduled")
		}
		return nil
	},
}

func runUpload(ctx context.Context, client *apiClient, prober media.Prober, path string, opts upload.Options) (storage.Video, error) {
	return upload.NewPipeline(client, prober, nil).UploadVideo(ctx, path, opts)
}

// progressPrinter prints a step every time the upload passes another 10%.
func progressPrinter() func(float64) {
	last := -10
	return func(p float64) {
		pct := int(p * 100)
		if pct/10 == last/10 && pct != 100 {
			return
		}
		last = pct
		printStep("%3d%%", pct)
	}
}

func init() {
	uploadCmd.Flags().String("project", "", "project id (required)")
	uploadCmd.Flags().String("title", "", "video title (default: file name)")
	uploadCmd.Flags().Bool("transcribe", false, "schedule transcription after upload")
	uploadCmd.Flags().String("provider", "", "transcription provider (openai or elevenlabs)")
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/projects"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}
		var projects []storage.Project
		if err := client.get(cmd.Context(), path, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, p := range projects {
			fmt.Println(formatProject(p))
		}
		return nil
	},
}

func formatProject(p storage.Project) string {
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	line := fmt.Sprintf("%s  %-30s  %d videos, %d agents", colorize(colorCyan, id), p.Title, p.Stats.VideoCount, p.Stats.AgentCount)
	if p.Status != storage.ProjectActive {
		line += "  " + colorize(colorYellow, "["+p.Status+"]")
	}
	if p.IsPublic {
		line += "  " + colorize(colorGreen, "[shared]")
	}
	return line
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		tagsStr, _ := cmd.Flags().GetString("tags")

		req := map[string]any{"title": strings.Join(args, " ")}
		if description != "" {
			req["description"] = description
		}
		if category != "" {
			req["category"] = category
		}
		if tags := splitTags(tagsStr); tags != nil {
			req["tags"] = tags
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var p storage.Project
		if err := client.post(cmd.Context(), "/projects", req, &p); err != nil {
			return err
		}
		printSuccess("Created project %s", p.ID)
		return nil
	},
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	tags := strings.Split(s, ",")
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
	}
	return tags
}

var projectArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.mutate(cmd.Context(), "POST", "/projects/"+url.PathEscape(args[0])+"/archive", nil, nil); err != nil {
			return err
		}
		printSuccess("Archived project %s", args[0])
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hard, _ := cmd.Flags().GetBool("hard")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/projects/" + url.PathEscape(args[0])
		if hard {
			path += "?hard=true"
		}
		if err := client.mutate(cmd.Context(), "DELETE", path, nil, nil); err != nil {
			return err
		}
		if hard {
			printSuccess("Deleted project %s and its videos", args[0])
		} else {
			printSuccess("Moved project %s to trash", args[0])
		}
		return nil
	},
}

func init() {
	projectListCmd.Flags().String("status", "", "filter by status (active, archived, deleted)")
	projectCreateCmd.Flags().String("description", "", "project description")
	projectCreateCmd.Flags().String("category", "", "project category")
	projectCreateCmd.Flags().String("tags", "", "comma-separated tags")
	projectDeleteCmd.Flags().Bool("hard", false, "permanently delete videos, agents and shares")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectArchiveCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <type>",
	Short: "Generate a draft (title, description, tweets, blog, linkedin)",
	Long: `Generate a draft.

With --agent the stored agent is regenerated from its video and connections.
Otherwise a one-off draft is produced from --title and --transcript.

Examples:
  youpac generate title --title "Learn Go in 10 minutes"
  youpac generate blog --transcript ./transcript.txt
  youpac generate title --agent 9b1e...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, _ := cmd.Flags().GetString("agent")
		title, _ := cmd.Flags().GetString("title")
		transcriptPath, _ := cmd.Flags().GetString("transcript")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if agentID != "" {
			var a storage.Agent
			if err := client.post(cmd.Context(), "/agents/"+url.PathEscape(agentID)+"/generate", nil, &a); err != nil {
				return err
			}
			if a.Status == storage.AgentGenerating {
				printStep("Agent %s is generating in the background", a.ID)
				return nil
			}
			fmt.Println(a.Draft)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("agent type is required without --agent")
		}
		req, err := buildGenerateRequest(args[0], title, transcriptPath)
		if err != nil {
			return err
		}

		var resp generate.Response
		if err := client.post(cmd.Context(), "/generate", req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Content)
		return nil
	},
}

func buildGenerateRequest(kind, title, transcriptPath string) (map[string]any, error) {
	t := generate.AgentType(kind)
	if !t.Valid() {
		return nil, fmt.Errorf("unknown type %q", kind)
	}
	if t == generate.Thumbnail {
		return nil, fmt.Errorf("thumbnails need video frames; generate them from an agent with --agent")
	}

	videoData := map[string]any{}
	if title != "" {
		videoData["title"] = title
	}
	if transcriptPath != "" {
		data, err := os.ReadFile(transcriptPath)
		if err != nil {
			return nil, fmt.Errorf("reading transcript: %w", err)
		}
		videoData["transcription"] = string(data)
	}
	if len(videoData) == 0 {
		return nil, fmt.Errorf("one of --title or --transcript is required")
	}
	return map[string]any{"agentType": kind, "videoData": videoData}, nil
}

func init() {
	generateCmd.Flags().String("agent", "", "regenerate a stored agent")
	generateCmd.Flags().String("title", "", "video title")
	generateCmd.Flags().String("transcript", "", "path to a transcript text file")
}

// --- share ---

var shareCmd = &cobra.Command{
	Use:   "share <project-id>",
	Short: "Create a public read-only link to a project's canvas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var body any
		if title != "" {
			body = map[string]string{"title": title}
		}
		var link struct {
			ShareID string `json:"shareId"`
			URL     string `json:"url"`
		}
		if err := client.post(cmd.Context(), "/projects/"+url.PathEscape(args[0])+"/shares", body, &link); err != nil {
			return err
		}
		printSuccess("Shared as %s", link.ShareID)
		fmt.Println(link.URL)
		return nil
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare <share-id>",
	Short: "Revoke a public link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.mutate(cmd.Context(), "DELETE", "/shares/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		printSuccess("Revoked share %s", args[0])
		return nil
	},
}

func init() {
	shareCmd.Flags().String("title", "", "share title (default: project title)")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the creator profile used as generation context",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := client.get(cmd.Context(), "/profile", &p); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field (" + strings.Join(profile.Keys, ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := setProfileField(cmd.Context(), client, key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

// setProfileField reads the profile, changes one field and writes it back.
func setProfileField(ctx context.Context, client *apiClient, key, value string) error {
	var p profile.Profile
	if !p.Set(key, value) {
		return fmt.Errorf("unknown profile key %q (valid: %s)", key, strings.Join(profile.Keys, ", "))
	}
	if err := client.get(ctx, "/profile", &p); err != nil {
		return err
	}
	p.Set(key, value)
	return client.mutate(ctx, "PUT", "/profile", p, nil)
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
