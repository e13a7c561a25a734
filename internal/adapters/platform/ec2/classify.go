package ec2

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/olusolaa/cloud-reconciler/internal/errors"
)

// mapProviderError translates a raw provider error into the
// application's error taxonomy, attaching the resource it applies to.
func mapProviderError(resourceType, resourceID string, err error, ctx context.Context) error {
	if err == nil {
		return errors.Newf(errors.CodeInternal, "nil error in provider error handler for %s", resourceType)
	}

	if ctx != nil && ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.CodeProviderRequestError,
			fmt.Sprintf("context ended during %s API call", resourceType))
	}

	msg := err.Error()
	if strings.Contains(msg, "AuthFailure") ||
		strings.Contains(msg, "UnauthorizedOperation") ||
		strings.Contains(msg, "AccessDenied") ||
		strings.Contains(msg, "RequestExpired") {
		return errors.Wrap(err, errors.CodeAuthError,
			fmt.Sprintf("authentication error accessing %s '%s'", resourceType, resourceID))
	}

	if isNotFound(err) {
		return errors.Wrap(err, errors.CodeResourceNotFound,
			fmt.Sprintf("%s '%s' not found", resourceType, resourceID))
	}

	return errors.Wrap(err, errors.CodeProviderRequestError,
		fmt.Sprintf("provider request failed for %s '%s'", resourceType, resourceID))
}

// isNotFound is the well-defined not-found condition: reads hitting it
// are treated as "resource absent", every other read error is fatal.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if strings.Contains(code, "NotFound") || strings.Contains(code, ".Malformed") {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "InvalidInstanceID.NotFound") ||
		strings.Contains(msg, "InvalidVolume.NotFound") ||
		strings.Contains(msg, "does not exist")
}
