package atena

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
transports:
  provider: voicews
vendors:
  llm:
    provider: openai
    settings:
      model: arcee-ai/trinity-mini
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Temperature != 0.15 || cfg.Agent.TopP != 0.75 {
		t.Fatalf("agent params = %v / %v", cfg.Agent.Temperature, cfg.Agent.TopP)
	}
	if cfg.Monitor.IntervalMS != 15000 || cfg.Monitor.MinTurns != 3 {
		t.Fatalf("monitor defaults = %+v", cfg.Monitor)
	}
	if cfg.Context.MaxHistory != 20 {
		t.Fatalf("max_history = %d", cfg.Context.MaxHistory)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatal("redact_pii default should be true")
	}
	if got := cfg.Vendors.LLM.Settings["model"]; got != "arcee-ai/trinity-mini" {
		t.Fatalf("model = %v", got)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test-123")
	path := writeConfig(t, `
transports:
  provider: voicews
vendors:
  llm:
    provider: openai
    settings:
      api_key: ${TEST_LLM_KEY}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Vendors.LLM.Settings["api_key"]; got != "sk-test-123" {
		t.Fatalf("api_key = %v", got)
	}
}

func TestLoadConfigRequiresProviders(t *testing.T) {
	path := writeConfig(t, `
vendors:
  llm:
    provider: openai
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected missing transports.provider error")
	}

	path = writeConfig(t, `
transports:
  provider: voicews
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected missing vendors.llm.provider error")
	}
}

func TestLoadConfigKnowledgeBase(t *testing.T) {
	path := writeConfig(t, `
transports:
  provider: mock
vendors:
  llm:
    provider: mock
knowledge_base:
  login: "To reset your password, go to Settings > Account > Reset Password."
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Knowledge["login"]; got == "" {
		t.Fatal("knowledge_base entry missing")
	}
}
