package errs

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "typed error",
			err:      New(KindConflict, "slot already booked"),
			expected: KindConflict,
		},
		{
			name:     "wrapped typed error",
			err:      errors.Wrap(New(KindNotFound, "appointment not found"), "reschedule"),
			expected: KindNotFound,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: KindInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindExternalService, http.StatusBadGateway},
		{KindVectorstore, http.StatusBadGateway},
		{KindConfiguration, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.status, HTTPStatus(New(tc.kind, "x")))
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("pq: connection refused")
	err := Wrap(KindExternalService, "freebusy call failed", inner)

	require.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "EXTERNAL_SERVICE")
	assert.Contains(t, err.Error(), "connection refused")
}
