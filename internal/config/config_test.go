package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lazypower/contextgraph/internal/model"
)

// isolate runs the test in an empty directory so a stray .env cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:37778", got)
	}
	if cfg.Database.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Database.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "contextgraph.yaml")
	writeFile(t, path, `
server:
  port: 9000
  cors_origins: ["http://localhost:3000"]
database:
  backend: memory
scoring:
  decay_rate: 0.05
  edge_direction: outgoing
  weighted_edges: true
log:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want default kept", cfg.Server.Bind)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("CORSOrigins = %v, want one origin", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Database.Backend)
	}
	if cfg.Scoring.DecayRate != 0.05 || cfg.Scoring.EdgeDirection != model.Outgoing || !cfg.Scoring.WeightedEdges {
		t.Errorf("Scoring = %+v, want overrides applied", cfg.Scoring)
	}
	if cfg.Scoring.EdgeWeightFactor != 0.1 {
		t.Errorf("EdgeWeightFactor = %v, want default 0.1", cfg.Scoring.EdgeWeightFactor)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "contextgraph.yaml")
	writeFile(t, path, "server:\n  port: 9000\n  bind: 0.0.0.0\nscoring:\n  decay_rate: 0.05\n")
	writeFile(t, filepath.Join(dir, EnvFile), "CONTEXTGRAPH_PORT=9100\nCONTEXTGRAPH_DECAY_RATE=0.2\n")
	t.Setenv(EnvPort, "9200")
	t.Setenv(EnvDB, "/tmp/x.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Port = %d, want env to beat .env and yaml", cfg.Server.Port)
	}
	if cfg.Scoring.DecayRate != 0.2 {
		t.Errorf("DecayRate = %v, want .env to beat yaml", cfg.Scoring.DecayRate)
	}
	if cfg.Server.Bind != "0.0.0.0" {
		t.Errorf("Bind = %q, want yaml value", cfg.Server.Bind)
	}
	if cfg.Database.Path != "/tmp/x.db" {
		t.Errorf("Path = %q, want /tmp/x.db", cfg.Database.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"bad yaml", "server: [", nil},
		{"unknown backend", "database:\n  backend: postgres\n", nil},
		{"negative decay", "scoring:\n  decay_rate: -1\n", nil},
		{"bad direction", "scoring:\n  edge_direction: sideways\n", nil},
		{"bad log format", "log:\n  format: xml\n", nil},
		{"bad port env", "", map[string]string{EnvPort: "http"}},
		{"bad float env", "", map[string]string{EnvEdgeWeightFactor: "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "c.yaml")
			writeFile(t, path, tt.yaml)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestWatchReloads(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "contextgraph.yaml")
	writeFile(t, path, "scoring:\n  decay_rate: 0.01\n")

	got := make(chan Config, 4)
	w, err := Watch(path, nil, func(c Config) { got <- c })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// An invalid edit is ignored.
	writeFile(t, path, "scoring:\n  decay_rate: -3\n")
	time.Sleep(2 * debounceDelay)
	writeFile(t, path, "scoring:\n  decay_rate: 0.5\n")

	select {
	case c := <-got:
		if c.Scoring.DecayRate != 0.5 {
			t.Errorf("DecayRate = %v, want 0.5", c.Scoring.DecayRate)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}
}

func TestWatchCloseIdempotent(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "c.yaml")
	writeFile(t, path, "")
	w, err := Watch(path, nil, func(Config) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
