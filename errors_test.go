package snapembed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "configuration",
			err:      &ConfigurationError{Missing: []string{"client_id"}},
			sentinel: ErrConfiguration,
		},
		{
			name:     "validation",
			err:      &ValidationError{Messages: []string{"a valid email address is required"}},
			sentinel: ErrValidation,
		},
		{
			name:     "server sync",
			err:      NewServerSyncError("attach", errors.New("status 502")),
			sentinel: ErrServerSync,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ConfigurationError{Missing: []string{"client_id", "merchant_id"}}

	assert.Equal(t, "configuration error: missing client_id, merchant_id", err.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
	assert.Equal(t, "validation failed: postcode is required",
		(&ValidationError{Messages: []string{"postcode is required"}}).Error())
}

func TestServerSyncErrorCarriesEndpoint(t *testing.T) {
	t.Parallel()

	cause := errors.New("status 502")
	err := NewServerSyncError("journey", cause)

	var syncErr *ServerSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "journey", syncErr.Endpoint)
	assert.Equal(t, cause, syncErr.Cause)
	assert.Contains(t, err.Error(), "journey")
}
