package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogMode  string `yaml:"log_mode"` // dev|prod

	DBDriver string `yaml:"db_driver"` // sqlite|postgres
	DBDSN    string `yaml:"db_dsn"`

	BlobBasePath string `yaml:"blob_base_path"`
	WorkDir      string `yaml:"work_dir"` // scratch space for unpacked packages

	// ConverterCmd runs the v1.2 -> v2.1 migration tool; {src} and {dst} are
	// substituted. Empty means uploads are already v2.1 and are copied as-is.
	ConverterCmd []string `yaml:"converter_cmd"`
	Workers      int      `yaml:"workers"`
	DryRun       bool     `yaml:"dry_run"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	AuthHMACSecret string   `yaml:"auth_hmac_secret"`
	AdminUser      string   `yaml:"admin_user"`
	AdminPassHash  string   `yaml:"admin_pass_hash"` // bcrypt; empty disables login
	CORSOrigins    []string `yaml:"cors_origins"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:       ":8080",
		LogMode:        "dev",
		DBDriver:       "sqlite",
		BlobBasePath:   "./data",
		WorkDir:        os.TempDir(),
		Workers:        1,
		FetchTimeout:   5 * time.Minute,
		AuthHMACSecret: "supersecret-dev-key",
		AdminUser:      "admin",
		CORSOrigins:    []string{"http://localhost:3000"},
	}
}

// Load starts from Defaults, overlays the YAML file named by CONFIG_FILE (if
// any) and then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.overlayEnv()
	return cfg, nil
}

// FromEnv is Load without a config file.
func FromEnv() Config {
	cfg := Defaults()
	cfg.overlayEnv()
	return cfg
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) overlayEnv() {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.LogMode = envOr("LOG_MODE", c.LogMode)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.BlobBasePath = envOr("BLOB_BASE_PATH", c.BlobBasePath)
	c.WorkDir = envOr("WORK_DIR", c.WorkDir)
	if v := os.Getenv("CONVERTER_CMD"); v != "" {
		c.ConverterCmd = strings.Fields(v)
	}
	c.Workers = envInt("WORKERS", c.Workers)
	c.DryRun = envBool("DRY_RUN", c.DryRun)
	c.FetchTimeout = envDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", c.AuthHMACSecret)
	c.AdminUser = envOr("ADMIN_USER", c.AdminUser)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	if os.Getenv("CORS_ORIGINS") != "" {
		c.CORSOrigins = csvOr("CORS_ORIGINS", "")
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
