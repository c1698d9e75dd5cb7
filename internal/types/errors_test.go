package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeAuthKeyMissing, http.StatusUnauthorized},
		{ErrCodeAuthKeyInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundJob, http.StatusNotFound},
		{ErrCodeConflictActiveJob, http.StatusConflict},
		{ErrCodeEmailBlocked, http.StatusForbidden},
		{ErrCodeUpstreamMail, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.code.HTTPStatus(), string(tc.code))
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalDB, "failed to claim job", cause)

	require.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrCodeInternalDB, appErr.Code)
	assert.Equal(t, "internal_database_error: failed to claim job", err.Error())
}

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString("sk_live_supersecret")
	assert.Equal(t, "***REDACTED***", s.String())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***REDACTED***"`, string(b))
	assert.Equal(t, "sk_live_supersecret", s.Unmask())
}
