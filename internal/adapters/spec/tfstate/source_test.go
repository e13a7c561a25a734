package tfstate

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

const stateExport = `{
  "format_version": "1.0",
  "terraform_version": "1.5.7",
  "values": {
    "root_module": {
      "resources": [
        {
          "address": "aws_instance.web",
          "mode": "managed",
          "type": "aws_instance",
          "name": "web",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "values": {
            "instance_type": "t3.micro",
            "ami": "ami-1",
            "subnet_id": "subnet-1",
            "availability_zone": "us-east-1a",
            "vpc_security_group_ids": ["sg-1"],
            "tags": {"env": "prod"}
          }
        },
        {
          "address": "data.aws_ami.latest",
          "mode": "data",
          "type": "aws_ami",
          "name": "latest",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "values": {}
        },
        {
          "address": "aws_s3_bucket.logs",
          "mode": "managed",
          "type": "aws_s3_bucket",
          "name": "logs",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "values": {}
        }
      ],
      "child_modules": [
        {
          "address": "module.storage",
          "resources": [
            {
              "address": "module.storage.aws_ebs_volume.data",
              "mode": "managed",
              "type": "aws_ebs_volume",
              "name": "data",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "values": {
                "size": 100,
                "type": "gp3",
                "iops": 3000,
                "encrypted": true,
                "availability_zone": "us-east-1a",
                "tags": {"env": "prod"}
              }
            }
          ]
        }
      ]
    }
  }
}`

func newTestSource(t *testing.T, content string) *Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)
	src, err := NewSource(Config{FilePath: path, Account: "123456789012"}, logger)
	require.NoError(t, err)
	return src
}

func TestSource_ListDocuments(t *testing.T) {
	src := newTestSource(t, stateExport)

	docs, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	// The data source and the unmapped bucket type are skipped.
	require.Len(t, docs, 2)

	byName := map[string]ports.SpecDocument{}
	for _, d := range docs {
		byName[d.Identity.Name] = d
	}

	web := byName["web"]
	assert.Equal(t, domain.KindComputeInstance, web.Identity.Kind)
	assert.Equal(t, "123456789012", web.Identity.Account)
	assert.Equal(t, "us-east-1a", web.Identity.Group)
	assert.Equal(t, domain.StatePresent, web.DesiredState)
	assert.Equal(t, "t3.micro", web.Desired[domain.ComputeInstanceTypeKey])
	assert.Equal(t, "ami-1", web.Desired[domain.ComputeImageIDKey])
	assert.Equal(t, []string{"sg-1"}, web.Desired[domain.ComputeSecurityGroupsKey])
	assert.Equal(t, map[string]string{"env": "prod"}, web.Desired[domain.KeyTags])

	vol := byName["data"]
	assert.Equal(t, domain.KindBlockVolume, vol.Identity.Kind)
	assert.Equal(t, int64(100), vol.Desired[domain.VolumeSizeKey])
	assert.Equal(t, "gp3", vol.Desired[domain.VolumeTypeKey])
	assert.Equal(t, int64(3000), vol.Desired[domain.VolumeIOPSKey])
	assert.Equal(t, true, vol.Desired[domain.VolumeEncryptedKey])
}

func TestSource_ListDocuments_CachesParse(t *testing.T) {
	src := newTestSource(t, stateExport)

	first, err := src.ListDocuments(context.Background())
	require.NoError(t, err)

	// Rewriting the file after the first read must not change results.
	require.NoError(t, os.WriteFile(src.filePath, []byte(`{"format_version":"1.0"}`), 0o644))
	second, err := src.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestSource_ListDocuments_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
		require.NoError(t, err)
		src, err := NewSource(Config{FilePath: filepath.Join(t.TempDir(), "nope.json")}, logger)
		require.NoError(t, err)

		_, err = src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecReadError))
	})

	t.Run("empty export", func(t *testing.T) {
		src := newTestSource(t, "")
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
	})

	t.Run("invalid json", func(t *testing.T) {
		src := newTestSource(t, "{not json")
		_, err := src.ListDocuments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeSpecParseError))
	})

	t.Run("export without values section", func(t *testing.T) {
		src := newTestSource(t, `{"format_version":"1.0","terraform_version":"1.5.7"}`)
		docs, err := src.ListDocuments(context.Background())
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
