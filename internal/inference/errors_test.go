package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassifyErrorRetryableStatusCodes(t *testing.T) {
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		err := classifyError(&googleapi.Error{Code: code})
		require.True(t, IsTransient(err), "status %d should be transient", code)
	}
}

func TestClassifyErrorFatalStatusCodes(t *testing.T) {
	for _, code := range []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
	} {
		err := classifyError(&googleapi.Error{Code: code})
		require.False(t, IsTransient(err), "status %d should be fatal", code)
	}
}

func TestClassifyErrorDeadlineExceeded(t *testing.T) {
	err := classifyError(fmt.Errorf("call failed: %w", context.DeadlineExceeded))
	require.True(t, IsTransient(err))
}

func TestClassifyErrorPassesThroughUnknown(t *testing.T) {
	cause := errors.New("invalid api key")
	err := classifyError(cause)
	require.False(t, IsTransient(err))
	require.ErrorIs(t, err, cause)
}

func TestTransientErrorUnwraps(t *testing.T) {
	cause := &googleapi.Error{Code: http.StatusServiceUnavailable}
	err := classifyError(cause)

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Code)
}

func TestIsTransientIgnoresEmptyCandidate(t *testing.T) {
	require.False(t, IsTransient(ErrEmptyCandidate))
}
