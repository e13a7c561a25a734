package ec2

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

func apiError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(apiError("InvalidInstanceID.NotFound", "i-0abc does not exist")))
	assert.True(t, isNotFound(apiError("InvalidVolume.NotFound", "vol-0abc does not exist")))
	assert.True(t, isNotFound(apiError("InvalidInstanceID.Malformed", "bad id")))
	assert.True(t, isNotFound(fmt.Errorf("resource does not exist")))
	assert.False(t, isNotFound(apiError("RequestLimitExceeded", "slow down")))
	assert.False(t, isNotFound(fmt.Errorf("connection reset")))
}

func TestMapProviderError(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"auth failure", apiError("AuthFailure", "credentials invalid"), errors.CodeAuthError},
		{"unauthorized operation", apiError("UnauthorizedOperation", "not allowed"), errors.CodeAuthError},
		{"expired request", apiError("RequestExpired", "stale signature"), errors.CodeAuthError},
		{"not found", apiError("InvalidInstanceID.NotFound", "gone"), errors.CodeResourceNotFound},
		{"generic provider failure", apiError("InternalError", "oops"), errors.CodeProviderRequestError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapProviderError("compute instance", "web-1", tc.err, ctx)
			require.Error(t, mapped)
			assert.True(t, errors.Is(mapped, tc.code))
			assert.Contains(t, mapped.Error(), "web-1")
		})
	}

	t.Run("cancelled context wins over error text", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		mapped := mapProviderError("compute instance", "web-1", apiError("AuthFailure", "x"), cancelled)
		assert.True(t, errors.Is(mapped, errors.CodeProviderRequestError))
	})
}
