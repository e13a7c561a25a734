package hclspec

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/ports"
	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/internal/log"
)

func writeSpecFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestSource(t *testing.T, dir string) *Source {
	t.Helper()
	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)
	src, err := NewSource(Config{DirPath: dir}, logger)
	require.NoError(t, err)
	return src
}

func TestSource_ListDocuments(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "web.hcl", `
resource "compute_instance" "web-1" {
  account = "123456789012"
  group   = "us-east-1a"
  power   = "running"

  spec {
    instance_type   = "t3.micro"
    image_id        = "ami-1"
    security_groups = ["sg-1", "sg-2"]
    tags = {
      env = "prod"
    }
  }
}

resource "block_volume" "data" {
  account = "123456789012"
  group   = "us-east-1a"

  spec {
    size_gb     = 100
    volume_type = "gp3"
  }
}
`)
	writeSpecFile(t, dir, "retired.hcl", `
resource "compute_instance" "old" {
  account = "123456789012"
  group   = "us-east-1a"
  state   = "absent"
}
`)

	src := newTestSource(t, dir)
	docs, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	byName := map[string]ports.SpecDocument{}
	for _, d := range docs {
		byName[d.Identity.Name] = d
	}

	web := byName["web-1"]
	assert.Equal(t, domain.KindComputeInstance, web.Identity.Kind)
	assert.Equal(t, "123456789012", web.Identity.Account)
	assert.Equal(t, "us-east-1a", web.Identity.Group)
	assert.Equal(t, domain.StatePresent, web.DesiredState)
	assert.Equal(t, domain.PowerRunning, web.Power)
	assert.Equal(t, "t3.micro", web.Desired["instance_type"])
	assert.Equal(t, []any{"sg-1", "sg-2"}, web.Desired["security_groups"])
	assert.Equal(t, map[string]any{"env": "prod"}, web.Desired["tags"])

	vol := byName["data"]
	assert.Equal(t, domain.KindBlockVolume, vol.Identity.Kind)
	// HCL numbers land as int64, not float64.
	assert.Equal(t, int64(100), vol.Desired["size_gb"])

	old := byName["old"]
	assert.Equal(t, domain.StateAbsent, old.DesiredState)
	assert.Empty(t, old.Desired)
}

func TestSource_ListDocuments_Errors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		src := newTestSource(t, t.TempDir())
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecReadError))
	})

	t.Run("missing directory", func(t *testing.T) {
		src := newTestSource(t, filepath.Join(t.TempDir(), "nope"))
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecReadError))
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		writeSpecFile(t, dir, "bad.hcl", `resource "compute_instance" {`)
		src := newTestSource(t, dir)
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
	})

	t.Run("duplicate identity across files", func(t *testing.T) {
		dir := t.TempDir()
		block := `
resource "compute_instance" "web-1" {
  account = "123456789012"
  group   = "us-east-1a"
  spec {
    instance_type = "t3.micro"
  }
}
`
		writeSpecFile(t, dir, "a.hcl", block)
		writeSpecFile(t, dir, "b.hcl", block)
		src := newTestSource(t, dir)
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
		assert.Contains(t, err.Error(), "declared in both")
	})

	t.Run("unknown kind label", func(t *testing.T) {
		dir := t.TempDir()
		writeSpecFile(t, dir, "bad.hcl", `
resource "object_bucket" "logs" {
  account = "123456789012"
  spec {
    name = "logs"
  }
}
`)
		src := newTestSource(t, dir)
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
		assert.Contains(t, err.Error(), "unknown resource kind")
	})

	t.Run("invalid state value", func(t *testing.T) {
		dir := t.TempDir()
		writeSpecFile(t, dir, "bad.hcl", `
resource "compute_instance" "web-1" {
  account = "123456789012"
  state   = "maybe"
  spec {
    instance_type = "t3.micro"
  }
}
`)
		src := newTestSource(t, dir)
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
	})

	t.Run("present resource with empty spec", func(t *testing.T) {
		dir := t.TempDir()
		writeSpecFile(t, dir, "bad.hcl", `
resource "compute_instance" "web-1" {
  account = "123456789012"
}
`)
		src := newTestSource(t, dir)
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
	})
}
