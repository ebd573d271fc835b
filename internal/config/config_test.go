package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
model:
  provider: openai
  temperature: 0.2
  openai:
    model: gpt-4o-mini
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
qdrant:
  host: qdrant.internal
  port: 6334
  collection: medical_docs
telemetry:
  tracking_uri: http://mlflow:5000
  experiment: medrag
ingestion:
  intake_dir: /data/intake
  chunk_words: 500
pricing:
  input_per_1k: 0.00015
  output_per_1k: 0.0006
`

// writeConfig writes sampleYAML to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medrag.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// clearEnv unsets every mapped env var for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, m := range envMapping {
		t.Setenv(m.envKey, "")
		os.Unsetenv(m.envKey)
	}
}

func Test_Load_AppliesYAMLToEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, sampleYAML)

	loaded, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded path = %q, want %q", loaded, path)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":       "openai",
		"MODEL_TEMPERATURE":    "0.2",
		"OPENAI_MODEL":         "gpt-4o-mini",
		"EMBEDDING_MODEL":      "text-embedding-3-small",
		"EMBEDDING_DIMENSIONS": "1536",
		"QDRANT_HOST":          "qdrant.internal",
		"QDRANT_PORT":          "6334",
		"QDRANT_COLLECTION":    "medical_docs",
		"MLFLOW_TRACKING_URI":  "http://mlflow:5000",
		"MLFLOW_EXPERIMENT":    "medrag",
		"MEDRAG_INTAKE_DIR":    "/data/intake",
		"MEDRAG_CHUNK_WORDS":   "500",
		"PRICING_INPUT_PER_1K": "0.00015",
	}
	for key, want := range checks {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func Test_Load_EnvVarsWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("QDRANT_HOST", "preset.example")
	path := writeConfig(t, sampleYAML)

	if _, err := Load(path, slog.Default()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "preset.example" {
		t.Errorf("QDRANT_HOST = %q, env var should win over YAML", got)
	}
}

func Test_Load_NoFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	// Explicit path that does not exist falls through to "no config".
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != "" {
		t.Errorf("loaded = %q, want empty", loaded)
	}
}

func Test_Load_MalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "model: [unclosed")
	if _, err := Load(path, slog.Default()); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func Test_Load_MedragConfigEnvPath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, sampleYAML)
	t.Setenv("MEDRAG_CONFIG", path)

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded = %q, want MEDRAG_CONFIG path %q", loaded, path)
	}
}
