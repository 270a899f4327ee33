package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seal-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileParsesPermissionedMode(t *testing.T) {
	path := writeTempConfig(t, `
server_mode: Permissioned
sui_rpc_url: "https://fullnode.example.com"
client_configs:
  - name: alice
    client_master_key:
      Derived:
        derivation_index: 3
    key_server_object_id: "0x01"
    package_ids: ["0x0a", "0x0b"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModePermissioned, cfg.ServerMode)
	assert.Equal(t, "https://fullnode.example.com", cfg.FullNodeRPCURL)
	require.Len(t, cfg.ClientConfigs, 1)
	assert.Equal(t, "alice", cfg.ClientConfigs[0].Name)
	require.NotNil(t, cfg.ClientConfigs[0].ClientMasterKey.Derived)
	assert.Equal(t, uint32(3), cfg.ClientConfigs[0].ClientMasterKey.Derived.DerivationIndex)
}

func TestLoadFromFileFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, `
sui_rpc_url: "https://fullnode.example.com"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeOpen, cfg.ServerMode)
	assert.Equal(t, 10, cfg.CacheTTLs.PolicyEvalSeconds)
	assert.Equal(t, 5, cfg.CacheTTLs.UskMinutes)
	assert.Equal(t, 5, cfg.Deadlines.FullNodeRPCSeconds)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"v1"}, cfg.SupportedVersions)
}

func TestLoadFromFileRespectsExplicitTTLs(t *testing.T) {
	path := writeTempConfig(t, `
sui_rpc_url: "https://fullnode.example.com"
cache_ttls:
  policy_eval_seconds: 30
  usk_minutes: 2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.CacheTTLs.PolicyEvalSeconds)
	assert.Equal(t, 2, cfg.CacheTTLs.UskMinutes)
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
