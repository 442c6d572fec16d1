package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/vsakit/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--env-file="}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestGenerate_Deterministic(t *testing.T) {
	first, err := execute(t, "generate", "--dims", "500", "--sparsity", "10", "--seed", "9")
	require.NoError(t, err)
	second, err := execute(t, "generate", "--dims", "500", "--sparsity", "10", "--seed", "9")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "deterministic")
	assert.Contains(t, first, "nnz: 10")
}

func TestGenerate_Random(t *testing.T) {
	out, err := execute(t, "generate", "--dims", "500", "--sparsity", "11", "--seed", "9", "--random")
	require.NoError(t, err)
	assert.Contains(t, out, "random")
	// odd sparsity rounds down in random mode
	assert.Contains(t, out, "nnz: 10")
}

func TestGenerate_SparsityExceedsDims(t *testing.T) {
	_, err := execute(t, "generate", "--dims", "5", "--sparsity", "6")
	assert.ErrorIs(t, err, config.ErrSparsityExceedsDims)
}

func TestGenerate_DimsBelowDefaultSparsity(t *testing.T) {
	out, err := execute(t, "generate", "--dims", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "nnz: 50")
}

func TestCorrupt(t *testing.T) {
	out, err := execute(t, "corrupt", "--size", "2048", "--seed", "3", "--rate", "0.05", "--loss", "0.5", "--packet-size", "128", "--erasures", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "source")
	assert.Contains(t, out, "Corruption evidence")
	assert.Contains(t, out, "DETECTED")
}

func TestCorrupt_InvalidRate(t *testing.T) {
	_, err := execute(t, "corrupt", "--rate", "1.5")
	assert.Error(t, err)
}

func TestCampaign(t *testing.T) {
	out, err := execute(t, "campaign", "--seeds", "4", "--workers", "2", "--dims", "800", "--sparsity", "16", "--buffer-size", "512")
	require.NoError(t, err)
	assert.Contains(t, out, "Campaign ")
	assert.Contains(t, out, "Health")
	assert.Contains(t, out, "Fault evidence")
	assert.Contains(t, out, "Seed timing")
	assert.Contains(t, out, "peak rss")
}

func TestCampaign_DimsBelowDefaultSparsity(t *testing.T) {
	out, err := execute(t, "campaign", "--seeds", "2", "--workers", "1", "--dims", "64", "--buffer-size", "256")
	require.NoError(t, err)
	assert.Contains(t, out, "seeds: 2")
}

func TestCampaign_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsakit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seeds: 2\ndims: 300\nsparsity: 8\nbuffer_size: 256\nlog_format: json\n"), 0o600))

	out, err := execute(t, "--config", path, "campaign", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "seeds: 2")
}

func TestRoot_InvalidLogFormat(t *testing.T) {
	_, err := execute(t, "--log-format", "xml", "generate")
	assert.True(t, errors.Is(err, config.ErrInvalidLogFormat))
}
