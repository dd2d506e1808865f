package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/ndbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ndbridge "+version+"\n", out)
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "serve"`)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want analysisReport
	}{
		{
			name: "contiguous",
			args: []string{"--shape", "3,4", "--dtype", "float32"},
			want: analysisReport{
				Input:     layoutReport{Shape: []int{3, 4}, Strides: []int{16, 4}, DType: "float32"},
				Supported: true,
				Matrix:    &matReport{Type: "32FC1", Sizes: []int{3, 4}, Steps: []int{16, 4}, Channels: 1},
			},
		},
		{
			name: "image",
			args: []string{"--shape", "2,5,3", "--dtype", "uint8"},
			want: analysisReport{
				Input:     layoutReport{Shape: []int{2, 5, 3}, Strides: []int{15, 3, 1}, DType: "uint8"},
				Supported: true,
				Matrix:    &matReport{Type: "8UC3", Sizes: []int{2, 5}, Steps: []int{15, 3}, Channels: 3},
			},
		},
		{
			name: "padded rows",
			args: []string{"--shape", "3,4", "--strides", "32,4", "--dtype", "float32"},
			want: analysisReport{
				Input:     layoutReport{Shape: []int{3, 4}, Strides: []int{32, 4}, DType: "float32"},
				Supported: true,
				Matrix:    &matReport{Type: "32FC1", Sizes: []int{3, 4}, Steps: []int{32, 4}, Channels: 1},
			},
		},
		{
			name: "column-major",
			args: []string{"--shape", "3,4", "--strides", "4,12", "--dtype", "float32"},
			want: analysisReport{
				Input:      layoutReport{Shape: []int{3, 4}, Strides: []int{4, 12}, DType: "float32"},
				Supported:  true,
				Transposed: true,
				Matrix:     &matReport{Type: "32FC1", Sizes: []int{4, 3}, Steps: []int{12, 4}, Channels: 1},
			},
		},
		{
			name: "reversed",
			args: []string{"--shape", "3,4", "--strides=-16,4", "--dtype", "float32"},
			want: analysisReport{
				Input:     layoutReport{Shape: []int{3, 4}, Strides: []int{-16, 4}, DType: "float32"},
				Supported: true,
				Copy:      true,
			},
		},
		{
			name: "cast",
			args: []string{"--shape", "2", "--dtype", "int64"},
			want: analysisReport{
				Input:     layoutReport{Shape: []int{2}, Strides: []int{8}, DType: "int64"},
				Supported: true,
				CastTo:    "int32",
				Copy:      true,
			},
		},
		{
			name: "negative extent",
			args: []string{"--shape=4,-1", "--dtype", "float32"},
			want: analysisReport{
				Input: layoutReport{Shape: []int{4, -1}, Strides: []int{-4, 4}, DType: "float32"},
				Error: "invalid layout: invalid dimension at index 1: -1 (must be > 0)",
			},
		},
		{
			name: "bool",
			args: []string{"--shape", "2", "--dtype", "bool"},
			want: analysisReport{
				Input: layoutReport{Shape: []int{2}, Strides: []int{1}, DType: "bool"},
				Error: "unsupported element type: bool has no matrix depth",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"analyze"}, tt.args...)...)
			require.NoError(t, err)

			var got analysisReport
			require.NoError(t, yaml.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		zeroCopy  bool
		sameArray bool
	}{
		{"contiguous", []string{"--shape", "4,6", "--dtype", "float32"}, true, true},
		{"image", []string{"--shape", "4,4,3", "--dtype", "uint8"}, true, true},
		{"flipped", []string{"--shape", "5,3", "--dtype", "int16", "--flip", "0"}, false, false},
		{"column-major", []string{"--shape", "3,5", "--dtype", "float64", "--transpose"}, false, false},
		{"stepped", []string{"--shape", "4,8", "--dtype", "int32", "--step", "3"}, false, false},
		{"cast", []string{"--shape", "6", "--dtype", "uint32"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"roundtrip"}, tt.args...)...)
			require.NoError(t, err)

			var got roundTripReport
			require.NoError(t, yaml.Unmarshal([]byte(out), &got))
			assert.True(t, got.Match)
			assert.Equal(t, tt.zeroCopy, got.ZeroCopy)
			assert.Equal(t, tt.sameArray, got.SameArray)
			assert.Len(t, got.Digest, 64)
		})
	}
}

func TestRoundTripWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  backend: mmap\n  mmap_threshold: 0\n"), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--config", path, "roundtrip", "--shape", "32,32", "--dtype", "float64", "--flip", "1"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "match: true")
}

func TestRoundTripMemoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  limit: 512\n"), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--config", path, "roundtrip", "--shape", "8,8", "--dtype", "int64"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestStress(t *testing.T) {
	out, err := runCLI(t, "stress", "--workers", "4", "--iterations", "20")
	require.NoError(t, err)

	var got stressReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 80, got.Jobs)
	assert.Equal(t, 0, got.Live)
	assert.Equal(t, int64(80), got.ZeroCopy+got.Copied)
	assert.Positive(t, got.ZeroCopy)
	assert.Positive(t, got.Copied)
}
