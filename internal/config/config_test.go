package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	strs map[string]string
	ints map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strs: map[string]string{}, ints: map[string]int{}}
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *memBackend) SetString(key, val string) error { m.strs[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error  { m.ints[key] = val; return nil }
func (m *memBackend) Delete(key string) error {
	delete(m.strs, key)
	delete(m.ints, key)
	return nil
}

func TestDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Objects.Backend != "local" {
		t.Errorf("Objects.Backend = %q, want %q", cfg.Objects.Backend, "local")
	}
	if cfg.LLM.TextModel != "gpt-4o-mini" {
		t.Errorf("LLM.TextModel = %q, want %q", cfg.LLM.TextModel, "gpt-4o-mini")
	}
	if cfg.LLM.VisionModel != "gpt-4o" {
		t.Errorf("LLM.VisionModel = %q, want %q", cfg.LLM.VisionModel, "gpt-4o")
	}
	if cfg.Transcription.DefaultProvider != "openai" {
		t.Errorf("Transcription.DefaultProvider = %q, want %q", cfg.Transcription.DefaultProvider, "openai")
	}
	if cfg.Generation.BatchConcurrency != 3 {
		t.Errorf("Generation.BatchConcurrency = %d, want 3", cfg.Generation.BatchConcurrency)
	}
}

func TestFileValues(t *testing.T) {
	path := writeTempConfig(t, `server.port: 5000
llm.text_model: custom-model
objects.use_ssl: true
`)
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.LLM.TextModel != "custom-model" {
		t.Errorf("LLM.TextModel = %q, want %q", cfg.LLM.TextModel, "custom-model")
	}
	if !cfg.Objects.UseSSL {
		t.Error("Objects.UseSSL = false, want true")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "server.port: 5000\n")
	t.Setenv("YOUPAC_SERVER_PORT", "6000")
	t.Setenv("YOUPAC_LLM_API_KEY", "env-key")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "env-key")
	}
}

func TestSecretsIgnoredInFile(t *testing.T) {
	path := writeTempConfig(t, "llm.api_key: from-file\n")
	t.Setenv("YOUPAC_LLM_API_KEY", "")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey = %q, want empty", cfg.LLM.APIKey)
	}
}

func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	t.Setenv("YOUPAC_WORKER_CONCURRENCY", "many")
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("Worker.Concurrency = %d, want 2", cfg.Worker.Concurrency)
	}
}

func TestInvalidObjectsBackend(t *testing.T) {
	b := newMemBackend()
	b.strs["objects.backend"] = "s3"
	if _, err := loadWith(b); err == nil {
		t.Fatal("expected error for unknown objects backend")
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()

	if err := setKey(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if b.ints["server.port"] != 4200 {
		t.Errorf("server.port = %d, want 4200", b.ints["server.port"])
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "objects.use_ssl", "maybe"); err == nil {
		t.Error("expected error for non-boolean use_ssl")
	}
	if err := setKey(b, "llm.api_key", "x"); err == nil {
		t.Error("expected error setting a secret")
	}
	if err := setKey(b, "nope.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	b := newFileBackend(path)
	if err := b.SetString("llm.text_model", "m1"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	reloaded := newFileBackend(path)
	if v, ok, _ := reloaded.GetString("llm.text_model"); !ok || v != "m1" {
		t.Errorf("llm.text_model = %q (ok=%v), want m1", v, ok)
	}
	if v, ok, _ := reloaded.GetInt("server.port"); !ok || v != 4300 {
		t.Errorf("server.port = %d (ok=%v), want 4300", v, ok)
	}

	if err := reloaded.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "secret"
	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Key, "api_key") || strings.Contains(ki.Key, "secret") {
			t.Errorf("ShowAll exposed secret key %q", ki.Key)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("2s", time.Second); got != 2*time.Second {
		t.Errorf("Duration(2s) = %v, want 2s", got)
	}
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("Duration(\"\") = %v, want 1s", got)
	}
	if got := Duration("bogus", time.Second); got != time.Second {
		t.Errorf("Duration(bogus) = %v, want 1s", got)
	}
}

func TestMissingSecretError(t *testing.T) {
	err := MissingSecretError("llm.api_key")
	if !strings.Contains(err.Error(), "YOUPAC_LLM_API_KEY") {
		t.Errorf("error = %q, want env var name", err.Error())
	}
}

func TestEnsureAPITokenPersists(t *testing.T) {
	cfg := defaults()
	cfg.Storage.DataDir = t.TempDir()

	first, err := EnsureAPIToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64", len(first))
	}
	second, err := EnsureAPIToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("second token = %q, want %q", second, first)
	}
	info, err := os.Stat(TokenPath(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
	read, err := ReadAPIToken(cfg)
	if err != nil || read != first {
		t.Errorf("ReadAPIToken = %q, %v; want %q", read, err, first)
	}
}

func TestEnsureAPITokenPrefersConfig(t *testing.T) {
	cfg := defaults()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Auth.APIToken = "from-env"

	tok, err := EnsureAPIToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "from-env" {
		t.Errorf("token = %q, want from-env", tok)
	}
	if _, err := os.Stat(TokenPath(cfg)); !os.IsNotExist(err) {
		t.Errorf("token file created although a token was configured")
	}
}
