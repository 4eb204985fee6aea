package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseServerConfig(t *testing.T, args []string, paths ...string) ServerConfig {
	t.Helper()
	var cfg ServerConfig
	parser, err := kong.New(&cfg, kong.Configuration(TomlConfigLoader, paths...), kong.Exit(func(int) {
		t.Fatal("kong tried to exit")
	}))
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return cfg
}

func TestServerConfig_Defaults(t *testing.T) {
	cfg := parseServerConfig(t, nil)
	expected := DefaultServerConfig()
	assert.Equal(t, expected, cfg)
	assert.Equal(t, "127.0.0.1:6379", cfg.RespAddr())
	assert.NoError(t, cfg.Validate())
}

func TestTomlConfigLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "respd.toml")
	content := `
port = 6380
read_chunk_size = 1024

[decoder]
lenient-bulk-length = true

[metrics]
enable = true
sink = "in-memory"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := parseServerConfig(t, []string{"--service-port=7090"}, path)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, 7090, cfg.ServicePort)
	assert.Equal(t, 1024, cfg.ReadChunkSize)
	assert.True(t, cfg.Decoder.LenientBulkLength)
	assert.True(t, cfg.Metrics.EnableMetrics)
	assert.Equal(t, "in-memory", cfg.Metrics.MetricsSinkType)
	assert.Equal(t, "127.0.0.1", cfg.Host)
}

func TestTomlConfigLoader_FlagWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "respd.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 6380\n"), 0o600))

	cfg := parseServerConfig(t, []string{"--port=6390"}, path)
	assert.Equal(t, 6390, cfg.Port)
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ServerConfig)
	}{
		{name: "bad port", mutate: func(c *ServerConfig) { c.Port = 0 }},
		{name: "bad service port", mutate: func(c *ServerConfig) { c.ServicePort = 70000 }},
		{name: "same ports", mutate: func(c *ServerConfig) { c.ServicePort = c.Port }},
		{name: "bad chunk size", mutate: func(c *ServerConfig) { c.ReadChunkSize = 0 }},
		{name: "bad host", mutate: func(c *ServerConfig) { c.Host = "not a host" }},
		{name: "bad sink", mutate: func(c *ServerConfig) { c.Metrics.MetricsSinkType = "statsd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
