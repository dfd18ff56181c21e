package assist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clipflow/clipflow-engine/internal/db"
	"github.com/clipflow/clipflow-engine/internal/store"
)

func TestNewCompleter(t *testing.T) {
	logger := quietLogger()

	c, err := NewCompleter(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "m"}, logger)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Errorf("openai completer type = %T", c)
	}

	c, err = NewCompleter(Config{Provider: ProviderClaude, APIKey: "k", Model: "m"}, logger)
	if err != nil {
		t.Fatalf("claude: %v", err)
	}
	if _, ok := c.(*ClaudeClient); !ok {
		t.Errorf("claude completer type = %T", c)
	}

	if _, err := NewCompleter(Config{Provider: "gemini", APIKey: "k"}, logger); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewCompleter(Config{Provider: ProviderOpenAI}, logger); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		wantErr bool
	}{
		"defaults":            {DefaultConfig(), false},
		"claude":              {Config{Provider: ProviderClaude, Temperature: 1}, false},
		"unknown provider":    {Config{Provider: "gemini"}, true},
		"temperature too hot": {Config{Provider: ProviderOpenAI, Temperature: 2.5}, true},
		"negative max tokens": {Config{Provider: ProviderOpenAI, MaxTokens: -1}, true},
	}
	for name, tc := range tests {
		if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", name, err, tc.wantErr)
		}
	}
}

func setupTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), quietLogger())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewConfigStore(store.New(database.Conn(), quietLogger()), quietLogger())
}

func TestConfigStore_LoadDefaults(t *testing.T) {
	cs := setupTestConfigStore(t)
	cfg := cs.Load(context.Background())
	if cfg != DefaultConfig() {
		t.Errorf("Load on empty store = %+v, want defaults", cfg)
	}
}

func TestConfigStore_Roundtrip(t *testing.T) {
	cs := setupTestConfigStore(t)
	ctx := context.Background()

	want := Config{
		Provider:    ProviderClaude,
		Endpoint:    "https://api.anthropic.com",
		APIKey:      "sk-ant-test123456",
		Model:       "claude-sonnet-4-5",
		Temperature: 0.3,
		MaxTokens:   2048,
	}
	if err := cs.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := cs.Load(ctx)
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestConfigStore_SaveRejectsInvalid(t *testing.T) {
	cs := setupTestConfigStore(t)
	err := cs.Save(context.Background(), Config{Provider: "gemini", APIKey: "k"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := cs.Load(context.Background()); got != DefaultConfig() {
		t.Errorf("invalid save must not persist, got %+v", got)
	}
}

func TestConfigRedacted(t *testing.T) {
	cfg := Config{Provider: ProviderOpenAI, APIKey: "sk-verysecretkey12345", Model: "gpt-4o-mini"}
	red := cfg.Redacted()
	if red.APIKey == cfg.APIKey {
		t.Error("Redacted did not mask the API key")
	}
	if red.Model != cfg.Model || red.Provider != cfg.Provider {
		t.Error("Redacted changed non-secret fields")
	}

	unset := Config{Provider: ProviderOpenAI}
	if got := unset.Redacted().APIKey; got != "" {
		t.Errorf("Redacted() of unset key = %q, want empty", got)
	}
}
