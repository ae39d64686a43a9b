package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/platform/httpx"
	"github.com/khata-app/khata/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: amount must be positive", shared.ErrValidation), http.StatusBadRequest},
		{shared.ErrEmailTaken, http.StatusBadRequest},
		{shared.ErrInvalidCredentials, http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("session: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrBusy, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.status != http.StatusInternalServerError, httpx.IsClientError(tc.err))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, errors.New("pq: password authentication failed"))

	var body httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Error", body.Title)
	assert.Empty(t, body.Detail)
}

func TestDecodeJSONMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`))
	var target map[string]any
	err := httpx.DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}
