package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qtifix.yaml")
	yml := `
http_addr: ":9090"
workers: 4
converter_cmd: ["python3", "migrate.py", "--nogui", "--cpout={dst}", "{src}"]
fetch_timeout: 30s
cors_origins: ["https://a.example"]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WORKERS", "8")
	t.Setenv("DRY_RUN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.Workers != 8 {
		t.Fatalf("env should win over file, workers = %d", cfg.Workers)
	}
	if !cfg.DryRun {
		t.Fatal("dry run not set from env")
	}
	if len(cfg.ConverterCmd) != 5 || cfg.ConverterCmd[3] != "--cpout={dst}" {
		t.Fatalf("converter cmd = %v", cfg.ConverterCmd)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Fatalf("fetch timeout = %v", cfg.FetchTimeout)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("default db driver lost: %q", cfg.DBDriver)
	}
}

func TestFromEnvCSV(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " http://a , ,http://b")
	t.Setenv("CONVERTER_CMD", "migrate --nogui")
	cfg := FromEnv()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if len(cfg.ConverterCmd) != 2 {
		t.Fatalf("converter = %v", cfg.ConverterCmd)
	}
}
