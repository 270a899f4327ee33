// Package config loads the key server's YAML configuration document
// (spec §6), following the LoadFromFile/setDefaults pattern: try YAML,
// fall back to JSON, then fill in unset TTLs/deadlines/ports.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerMode selects whether this server serves a single
// self-registered key-server object (Open) or a configured set of
// clients (Permissioned).
type ServerMode string

const (
	ModeOpen         ServerMode = "Open"
	ModePermissioned ServerMode = "Permissioned"
)

// MasterKeyConfig is the tagged master-key variant as it appears in
// YAML, decoded by cmd/seal-server into pkg/masterkey's runtime Client
// form.
type MasterKeyConfig struct {
	Plain    *PlainKeyConfig    `yaml:"Plain,omitempty" json:"Plain,omitempty"`
	Derived  *DerivedKeyConfig  `yaml:"Derived,omitempty" json:"Derived,omitempty"`
	Exported *ExportedKeyConfig `yaml:"Exported,omitempty" json:"Exported,omitempty"`
	Imported *ImportedKeyConfig `yaml:"Imported,omitempty" json:"Imported,omitempty"`
}

type PlainKeyConfig struct {
	EnvVar string `yaml:"env_var" json:"env_var"`
}

type DerivedKeyConfig struct {
	DerivationIndex uint32 `yaml:"derivation_index" json:"derivation_index"`
}

type ExportedKeyConfig struct {
	DeprecatedDerivationIndex uint32 `yaml:"deprecated_derivation_index" json:"deprecated_derivation_index"`
}

type ImportedKeyConfig struct {
	EnvVar string `yaml:"env_var" json:"env_var"`
}

// ClientConfig is one entry of client_configs.
type ClientConfig struct {
	Name              string          `yaml:"name" json:"name"`
	ClientMasterKey   MasterKeyConfig `yaml:"client_master_key" json:"client_master_key"`
	KeyServerObjectID string          `yaml:"key_server_object_id" json:"key_server_object_id"`
	PackageIDs        []string        `yaml:"package_ids" json:"package_ids"`
}

// CacheTTLs bundles the two cache lifetimes of spec §4.5.
type CacheTTLs struct {
	PolicyEvalSeconds int `yaml:"policy_eval_seconds" json:"policy_eval_seconds"`
	UskMinutes        int `yaml:"usk_minutes" json:"usk_minutes"`
}

// Deadlines bundles the request-scoped timeouts of spec §5.
type Deadlines struct {
	FullNodeRPCSeconds int `yaml:"full_node_rpc_seconds" json:"full_node_rpc_seconds"`
}

// Config is the full key-server configuration document.
type Config struct {
	ServerMode        ServerMode     `yaml:"server_mode" json:"server_mode"`
	KeyServerObjectID string         `yaml:"key_server_object_id,omitempty" json:"key_server_object_id,omitempty"`
	ClientConfigs     []ClientConfig `yaml:"client_configs,omitempty" json:"client_configs,omitempty"`
	FullNodeRPCURL    string         `yaml:"sui_rpc_url" json:"sui_rpc_url"`
	SupportedVersions []string       `yaml:"supported_versions" json:"supported_versions"`
	CacheTTLs         CacheTTLs      `yaml:"cache_ttls" json:"cache_ttls"`
	Deadlines         Deadlines      `yaml:"deadlines" json:"deadlines"`
	MetricsPort       int            `yaml:"metrics_port" json:"metrics_port"`
	HTTPPort          int            `yaml:"http_port" json:"http_port"`

	// Supplemented beyond the distilled spec (SPEC_FULL.md §4.9/§6).
	LogFormat                 string `yaml:"log_format" json:"log_format"`
	LogLevel                  string `yaml:"log_level" json:"log_level"`
	HealthCacheSeconds         int    `yaml:"health_cache_ttl" json:"health_cache_ttl"`
	MasterSeedKMSKeyID         string `yaml:"master_seed_kms_key_id,omitempty" json:"master_seed_kms_key_id,omitempty"`
	MasterSeedKMSCiphertextB64 string `yaml:"master_seed_kms_ciphertext,omitempty" json:"master_seed_kms_ciphertext,omitempty"`
}

// LoadFromFile reads and parses the configuration document, trying
// YAML then JSON, and fills in defaults for unset fields.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := &Config{}
	if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parsing %s as YAML (%v) or JSON (%w)", path, yamlErr, jsonErr)
		}
	}
	setDefaults(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.ServerMode == "" {
		cfg.ServerMode = ModeOpen
	}
	if cfg.CacheTTLs.PolicyEvalSeconds == 0 {
		cfg.CacheTTLs.PolicyEvalSeconds = 10
	}
	if cfg.CacheTTLs.UskMinutes == 0 {
		cfg.CacheTTLs.UskMinutes = 5
	}
	if cfg.Deadlines.FullNodeRPCSeconds == 0 {
		cfg.Deadlines.FullNodeRPCSeconds = 5
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HealthCacheSeconds == 0 {
		cfg.HealthCacheSeconds = 5
	}
	if len(cfg.SupportedVersions) == 0 {
		cfg.SupportedVersions = []string{"v1"}
	}
}

// PolicyEvalTTL, UskTTL and FullNodeDeadline convert the configured
// integer fields to time.Duration for the cache and fullnode packages.
func (c *Config) PolicyEvalTTL() time.Duration {
	return time.Duration(c.CacheTTLs.PolicyEvalSeconds) * time.Second
}

func (c *Config) UskTTL() time.Duration {
	return time.Duration(c.CacheTTLs.UskMinutes) * time.Minute
}

func (c *Config) FullNodeDeadline() time.Duration {
	return time.Duration(c.Deadlines.FullNodeRPCSeconds) * time.Second
}

// HealthCacheTTL converts the health endpoint's cache lifetime.
func (c *Config) HealthCacheTTL() time.Duration {
	return time.Duration(c.HealthCacheSeconds) * time.Second
}
