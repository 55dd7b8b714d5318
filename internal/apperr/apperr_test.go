package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUnauthorized, http.StatusUnauthorized},
		{New(ErrForbidden, "admin_required"), http.StatusForbidden},
		{fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{New(ErrConflict, "email_exists"), http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{Internal("signup", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(ErrConflict, "email_exists", cause)

	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "email_exists", Reason(fmt.Errorf("signup: %w", err)))
	require.Equal(t, "conflict", Message(err))
}

func TestMessageHidesInternalDetail(t *testing.T) {
	err := Internal("provision tenant", errors.New("pq: connection refused"))
	require.Equal(t, "internal server error", Message(err))
	require.Empty(t, Reason(errors.New("plain")))
}
