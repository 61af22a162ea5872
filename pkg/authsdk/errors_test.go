package authsdk

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	t.Run("typed body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadRequest}
		err := parseErrorResponse(resp, []byte(`{"error":"otp_expired","error_description":"code expired"}`))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "otp_expired: code expired", apiErr.Error())
		assert.ErrorIs(t, err, ErrOtpExpired)
		assert.False(t, errors.Is(err, ErrOtpMismatch))
	})

	t.Run("non json body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway}
		err := parseErrorResponse(resp, []byte("upstream down"))
		assert.ErrorIs(t, err, ErrServerError)
	})

	t.Run("success", func(t *testing.T) {
		assert.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
	})
}
