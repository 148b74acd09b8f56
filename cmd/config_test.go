package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/osmatch-cli/internal/config"
)

func TestConfigCmd_RedactsKey(t *testing.T) {
	cfg = testConfig()
	cfg.OSMatch.Key = "very-secret"

	var out bytes.Buffer
	configCmd.SetOut(&out)
	require.NoError(t, configCmd.RunE(configCmd, nil))

	assert.NotContains(t, out.String(), "very-secret")

	var got config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "REDACTED", got.OSMatch.Key)
	assert.Equal(t, ",", got.Input.Delimiter)
	assert.Equal(t, 8080, got.Server.Port)
	assert.Equal(t, "very-secret", cfg.OSMatch.Key)
}
