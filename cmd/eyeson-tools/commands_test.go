package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetDefaults(t *testing.T) {
	assert.Equal(t, targetSimulator, smokeCmd.Flags().Lookup("target").DefValue)
	assert.Equal(t, "false", smokeCmd.Flags().Lookup("allow-upstream").DefValue)
	assert.Equal(t, targetUpstream, captureCmd.Flags().Lookup("target").DefValue)
	assert.Equal(t, targetUpstream, genSpecCmd.Flags().Lookup("target").DefValue)
}

func TestSmokeDefaultsToSimulatorURL(t *testing.T) {
	t.Setenv("SIMULATOR_BASE_URL", "http://127.0.0.1:18888")
	t.Setenv("EYESON_API_BASE_URL", "https://upstream.invalid:8888")

	require.NoError(t, checkSmokeTarget(smokeCmd))
	_, baseURL, creds, err := resolveTarget(smokeCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:18888", baseURL)
	assert.NotEmpty(t, creds.Username)
}

func TestSmokeRefusesUpstreamWithoutOptIn(t *testing.T) {
	t.Cleanup(func() {
		_ = smokeCmd.Flags().Set("target", targetSimulator)
		_ = smokeCmd.Flags().Set("allow-upstream", "false")
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"smoke", "--target", targetUpstream})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--allow-upstream")

	require.NoError(t, smokeCmd.Flags().Set("allow-upstream", "true"))
	assert.NoError(t, checkSmokeTarget(smokeCmd))
}
