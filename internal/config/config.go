// Package config loads Loom configuration from a YAML file with
// environment-variable overrides. Every section has working defaults so
// a missing file still yields a runnable (if mostly offline) instance.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Loom configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	AuditLog  AuditLogConfig  `yaml:"audit_log"`
	CRM       CRMConfig       `yaml:"crm"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"` // empty disables auth
}

// DataConfig locates the authoritative on-disk case tree.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// SynthesisConfig configures the narrative synthesizer.
type SynthesisConfig struct {
	Provider     string   `yaml:"provider"` // ollama | gemini
	OllamaURL    string   `yaml:"ollama_url"`
	OllamaModel  string   `yaml:"ollama_model"`
	GeminiAPIKey string   `yaml:"gemini_api_key"`
	GeminiModel  string   `yaml:"gemini_model"`
	Timeout      Duration `yaml:"timeout"`
}

// MirrorConfig configures the best-effort CouchDB mirror of case metadata.
type MirrorConfig struct {
	URL      string `yaml:"url"` // empty disables mirroring
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AuditLogConfig locates the append-only activity log database.
type AuditLogConfig struct {
	Path string `yaml:"path"`
}

// CRMConfig configures the Odoo collaborator.
type CRMConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ToolsConfig configures the tool adapters.
type ToolsConfig struct {
	// Timeout bounds a single adapter execution at the registry boundary.
	Timeout Duration `yaml:"timeout"`

	SearxNGURL string `yaml:"searxng_url"`

	ReconSSHHost string `yaml:"recon_ssh_host"`
	ReconSSHUser string `yaml:"recon_ssh_user"`
	ReconSSHKey  string `yaml:"recon_ssh_key"`

	HarvesterImage string `yaml:"harvester_image"`
	SherlockImage  string `yaml:"sherlock_image"`

	SpiderFootURL    string `yaml:"spiderfoot_url"`
	SpiderFootAPIKey string `yaml:"spiderfoot_api_key"`

	IntelOwlURL    string `yaml:"intelowl_url"`
	IntelOwlAPIKey string `yaml:"intelowl_api_key"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8787",
		},
		Data: DataConfig{
			Dir: "/data",
		},
		Synthesis: SynthesisConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2:latest",
			GeminiModel: "gemini-2.5-flash",
			Timeout:     Duration(5 * time.Minute),
		},
		Mirror: MirrorConfig{
			Database: "osint_scans",
		},
		AuditLog: AuditLogConfig{
			Path: "/data/loom_activity.db",
		},
		Tools: ToolsConfig{
			Timeout:        Duration(5 * time.Minute),
			SearxNGURL:     "http://localhost:8888",
			ReconSSHUser:   "admin",
			HarvesterImage: "theharvester:latest",
			SherlockImage:  "sherlock/sherlock:latest",
		},
	}
}

// Load reads configuration from path, falling back to defaults for
// anything unset, then applies LOOM_* environment overrides. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded config.
// Secrets are the expected use; everything else is a convenience.
func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "LOOM_ADDR")
	setString(&c.Server.APIKey, "LOOM_API_KEY")
	setString(&c.Data.Dir, "LOOM_DATA_DIR")

	setString(&c.Synthesis.Provider, "LOOM_SYNTH_PROVIDER")
	setString(&c.Synthesis.OllamaURL, "OLLAMA_URL")
	setString(&c.Synthesis.OllamaModel, "OLLAMA_MODEL")
	setString(&c.Synthesis.GeminiAPIKey, "GEMINI_API_KEY")

	setString(&c.Mirror.URL, "COUCHDB_URL")
	setString(&c.Mirror.Database, "COUCHDB_DB")
	setString(&c.Mirror.Username, "COUCHDB_USER")
	setString(&c.Mirror.Password, "COUCHDB_PASS")

	setString(&c.AuditLog.Path, "LOOM_AUDIT_DB")

	setString(&c.CRM.URL, "ODOO_URL")
	setString(&c.CRM.Database, "ODOO_DB")
	setString(&c.CRM.Username, "ODOO_USERNAME")
	setString(&c.CRM.Password, "ODOO_PASSWORD")

	setString(&c.Tools.SearxNGURL, "SEARXNG_URL")
	setString(&c.Tools.ReconSSHHost, "RECON_SSH_HOST")
	setString(&c.Tools.ReconSSHUser, "RECON_SSH_USER")
	setString(&c.Tools.ReconSSHKey, "RECON_SSH_KEY")
	setString(&c.Tools.SpiderFootURL, "SPIDERFOOT_URL")
	setString(&c.Tools.SpiderFootAPIKey, "SPIDERFOOT_API_KEY")
	setString(&c.Tools.IntelOwlURL, "INTELOWL_URL")
	setString(&c.Tools.IntelOwlAPIKey, "INTELOWL_API_KEY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
