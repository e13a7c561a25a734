package ec2

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/errors"
	"github.com/olusolaa/cloud-reconciler/internal/log"
)

func newBareGateway(t *testing.T) *Gateway {
	t.Helper()
	logger, err := log.NewLoggerWithWriter(log.DefaultConfig(), io.Discard)
	require.NoError(t, err)
	return &Gateway{logger: logger, limiter: noLimit{}}
}

func TestModifySecurityGroups_Validation(t *testing.T) {
	g := newBareGateway(t)
	ctx := context.Background()

	t.Run("clear to nil is rejected before any call", func(t *testing.T) {
		err := g.modifySecurityGroups(ctx, "i-0abc", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodePlanError))
		msg, _, ok := errors.GetUserFacingMessage(err)
		require.True(t, ok)
		assert.Contains(t, msg, "security group")
	})

	t.Run("empty list is rejected before any call", func(t *testing.T) {
		err := g.modifySecurityGroups(ctx, "i-0abc", []string{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodePlanError))
	})

	t.Run("non-list desired is a type error", func(t *testing.T) {
		err := g.modifySecurityGroups(ctx, "i-0abc", 42)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeTypeAssertionError))
	})
}
