package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lineage/checkpoint"
	"github.com/hupe1980/lineage/codec"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, err := execute(t)
	assert.ErrorContains(t, err, "usage")

	out, err := execute(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")

	_, err = execute(t, "frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "ckpt")
	outFile := filepath.Join(dir, "traj.jsonl")
	metricsFile := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, "run",
		"--particles", "16",
		"--steps", "12",
		"--width", "2",
		"--seed", "5",
		"--checkpoint-dir", ckpt,
		"--checkpoint-every", "5",
		"--retain", "2",
		"--out", outFile,
		"--codec", "json",
		"--metrics-file", metricsFile,
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "t=12 slots=")
	assert.Contains(t, out, "steps=12")

	// Saves after steps 5 and 10 plus the final one; two are retained.
	entries, err := os.ReadDir(ckpt)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{checkpoint.CurrentName, checkpoint.Name(2), checkpoint.Name(3)}, names)

	f, err := os.Open(outFile)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []codec.Record
	require.NoError(t, codec.ReadLines(f, codec.JSON{}, func(r codec.Record) error {
		records = append(records, r)
		return nil
	}))
	require.Len(t, records, 16)
	for p, r := range records {
		assert.Equal(t, p, r.Particle)
		require.Len(t, r.States, 12)
		assert.Len(t, r.States[0], 2)
	}

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "lineage_writes_total 12")
}

func TestRun_ResumeInspectExport(t *testing.T) {
	ckpt := t.TempDir()

	_, err := execute(t, "run", "-n", "8", "-T", "6", "--checkpoint-dir", ckpt, "--log-level", "error")
	require.NoError(t, err)

	out, err := execute(t, "run", "-n", "8", "-T", "4", "--checkpoint-dir", ckpt, "--resume", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "t=10 ")

	out, err = execute(t, "inspect", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "t=10 ")
	assert.Contains(t, out, "width=1 particles=8")

	out, err = execute(t, "export", ckpt, "--codec", "go-json")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 8)

	_, err = execute(t, "run", "-n", "9", "-T", "1", "--checkpoint-dir", ckpt, "--resume", "--log-level", "error")
	assert.Error(t, err, "particle count must match the checkpoint")

	_, err = execute(t, "inspect", filepath.Join(ckpt, "missing"))
	assert.Error(t, err)

	_, err = execute(t, "inspect")
	assert.Error(t, err)
}

func TestParseRunFlags_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
filter:
  particles: 100
  steps: 7
  ess_threshold: 0.9
  resampler: multinomial
checkpoint:
  compression: zstd
log:
  format: json
`), 0o600))

	var stderr bytes.Buffer
	cfg, err := parseRunFlags([]string{"--config", path, "--steps", "3"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Filter.Particles)
	assert.Equal(t, 3, cfg.Filter.Steps, "flags override the file")
	assert.Equal(t, 0.9, cfg.Filter.ESSThreshold)
	assert.Equal(t, "multinomial", cfg.Filter.Resampler)
	assert.Equal(t, "zstd", cfg.Checkpoint.Compression)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1, cfg.Filter.Width, "defaults fill the rest")
}

func TestParseRunFlags_Invalid(t *testing.T) {
	var stderr bytes.Buffer

	for name, args := range map[string][]string{
		"particles":   {"--particles", "0"},
		"ess":         {"--ess", "2"},
		"codec":       {"--codec", "xml"},
		"compression": {"--compression", "brotli"},
		"resume":      {"--resume"},
		"level":       {"--log-level", "loud"},
		"resampler":   {"--resampler", "stratified"},
		"positional":  {"extra"},
		"unknown":     {"--nope"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseRunFlags(args, &stderr)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
