package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("vendor request 7: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{ErrConflict, http.StatusConflict, CodeConflict},
		{fmt.Errorf("%w: companyName required", ErrValidation), http.StatusBadRequest, CodeValidation},
		{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code)
		require.Equal(t, ContentTypeProblem, rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.code, problem.Code)
		require.Equal(t, tc.status, problem.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("pq: password authentication failed"))
	require.NotContains(t, rr.Body.String(), "password")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}
