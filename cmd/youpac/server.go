package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/api"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/config"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/generate"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/jobs"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/llm"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/moodboard"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/objects"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/profile"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/studio"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the youpac server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running youpac server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show youpac system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "youpac.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func openObjects(ctx context.Context, cfg config.Config) (objects.Store, error) {
	if cfg.Objects.Backend == "minio" {
		return objects.NewMinIO(ctx, objects.MinIOConfig{
			Endpoint:  cfg.Objects.Endpoint,
			AccessKey: cfg.Objects.AccessKey,
			SecretKey: cfg.Objects.SecretKey,
			Bucket:    cfg.Objects.Bucket,
			UseSSL:    cfg.Objects.UseSSL,
		})
	}
	return objects.NewLocal(filepath.Join(cfg.Storage.DataDir, "blobs"), cfg.Server.PublicOrigin)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "youpac version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.Log.Level))

	apiToken, err := config.EnsureAPIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available", "path", config.TokenPath(cfg))

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("youpac is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("youpac is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	objs, err := openObjects(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}

	model := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	gen := generate.New(model, generate.Options{
		TextModel:     cfg.LLM.TextModel,
		VisionModel:   cfg.LLM.VisionModel,
		ImageModel:    cfg.LLM.ImageModel,
		ActionTimeout: config.Duration(cfg.Generation.ActionTimeout, 30*time.Second),
	})

	transcriber := transcribe.NewManager(store, store, objs, cfg.Transcription.DefaultProvider,
		transcribe.NewOpenAI(cfg.Transcription.OpenAIAPIKey, ""),
		transcribe.NewElevenLabs(cfg.Transcription.ElevenLabsAPIKey, ""),
	)

	svc := studio.New(studio.Deps{
		Store:            store,
		Objects:          objs,
		Generator:        gen,
		Transcriber:      transcriber,
		Profiles:         profile.NewManager(store),
		Fetcher:          moodboard.NewFetcher(nil),
		PublicOrigin:     cfg.Server.PublicOrigin,
		BatchConcurrency: cfg.Generation.BatchConcurrency,
	})

	worker := jobs.NewWorker(store, config.Duration(cfg.Worker.PollInterval, 500*time.Millisecond))
	svc.RegisterJobs(worker)
	if err := svc.Recover(worker); err != nil {
		return err
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx, cfg.Worker.Concurrency)
	}()

	handler := api.NewAppHandler(api.AppDeps{
		Studio: svc,
		Token:  apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Studio: svc}))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "youpac listening on %s (public origin %s)\n", addr, cfg.Server.PublicOrigin)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			stop()
			<-workerDone
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stop()
	<-workerDone
	return err
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("youpac is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop youpac (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to youpac (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Public origin", "%s", cfg.Server.PublicOrigin)
	printStatus("Objects", "%s", cfg.Objects.Backend)
	printStatus("Text model", "%s", cfg.LLM.TextModel)
	printStatus("Transcription", "%s", cfg.Transcription.DefaultProvider)
	if cfg.LLM.APIKey == "" {
		printStatus("LLM key", "missing (set YOUPAC_LLM_API_KEY)")
	}

	if token, tokenErr := config.ReadAPIToken(cfg); tokenErr == nil && running {
		projResp, err := apiGet(client, serverURL+"/projects?status=active", token)
		if err == nil {
			var projects []json.RawMessage
			if json.NewDecoder(projResp.Body).Decode(&projects) == nil {
				printStatus("Active projects", "%d", len(projects))
			}
			projResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
