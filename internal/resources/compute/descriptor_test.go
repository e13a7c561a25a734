package compute

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
	"github.com/olusolaa/cloud-reconciler/internal/core/service/diff"
	"github.com/olusolaa/cloud-reconciler/internal/log"
)

func TestDescriptor(t *testing.T) {
	desc := Descriptor()
	assert.Equal(t, domain.KindComputeInstance, desc.Kind)
	assert.Equal(t, domain.TagMergeAppend, desc.TagMode)

	assert.True(t, desc.Policies[domain.ComputeImageIDKey].Immutable)
	assert.True(t, desc.Policies[domain.ComputeSubnetIDKey].Immutable)
	assert.True(t, desc.Policies[domain.ComputeSecurityGroupsKey].Unordered)
	assert.False(t, desc.Policies[domain.ComputeSecurityGroupsKey].PurgeIfAbsent)
	assert.True(t, desc.Policies[domain.KeyTags].TagMap)
	assert.False(t, desc.Policies[domain.ComputeInstanceTypeKey].Immutable)
}

func TestNormalize(t *testing.T) {
	in := domain.SpecTree{
		domain.ComputeInstanceTypeKey:   "t3.micro",
		domain.ComputeSecurityGroupsKey: []any{"sg-1", "sg-2"},
		domain.KeyTags:                  map[string]any{"env": "prod"},
		domain.ComputeStateKey:          "running",
	}

	out := normalize(in)
	assert.Equal(t, []string{"sg-1", "sg-2"}, out[domain.ComputeSecurityGroupsKey])
	assert.Equal(t, map[string]string{"env": "prod"}, out[domain.KeyTags])
	assert.NotContains(t, out, domain.ComputeStateKey)

	// Input is left untouched.
	assert.Contains(t, in, domain.ComputeStateKey)
	assert.IsType(t, []any{}, in[domain.ComputeSecurityGroupsKey])
}

// TestDiffAgainstLiveState drives the real descriptor through the diff
// engine against actual-state trees shaped the way the gateway reports
// them.
func TestDiffAgainstLiveState(t *testing.T) {
	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)
	e := diff.NewEngine(logger)
	desc := Descriptor()
	ctx := context.Background()

	t.Run("omitting security groups leaves live groups untouched", func(t *testing.T) {
		desired := desc.Normalize(domain.SpecTree{
			domain.ComputeInstanceTypeKey: "t3.micro",
			domain.ComputeImageIDKey:      "ami-1",
		})
		actual := domain.SpecTree{
			domain.ComputeInstanceTypeKey:   "t3.micro",
			domain.ComputeImageIDKey:        "ami-1",
			domain.ComputeSecurityGroupsKey: []string{"sg-default"},
		}

		res, err := e.Diff(ctx, desired, actual, desc.Policies, desc.TagMode)
		require.NoError(t, err)
		assert.True(t, res.Empty())
	})

	t.Run("security group order carries no meaning", func(t *testing.T) {
		desired := desc.Normalize(domain.SpecTree{
			domain.ComputeSecurityGroupsKey: []any{"sg-1", "sg-2"},
		})
		actual := domain.SpecTree{
			domain.ComputeSecurityGroupsKey: []string{"sg-2", "sg-1"},
		}

		res, err := e.Diff(ctx, desired, actual, desc.Policies, desc.TagMode)
		require.NoError(t, err)
		assert.True(t, res.Empty())
	})

	t.Run("membership change still diffs", func(t *testing.T) {
		desired := desc.Normalize(domain.SpecTree{
			domain.ComputeSecurityGroupsKey: []any{"sg-1", "sg-3"},
		})
		actual := domain.SpecTree{
			domain.ComputeSecurityGroupsKey: []string{"sg-1", "sg-2"},
		}

		res, err := e.Diff(ctx, desired, actual, desc.Policies, desc.TagMode)
		require.NoError(t, err)
		require.Len(t, res.Diffs, 1)
		assert.Equal(t, domain.ComputeSecurityGroupsKey, res.Diffs[0].Path)
		assert.Equal(t, domain.DiffSet, res.Diffs[0].Kind)
	})
}
