package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("posts: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("rbac: %w", ErrDuplicate), http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("store: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestUnavailableHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("dial tcp 10.0.0.1:5432: %w", ErrUnavailable))
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestIDParam(t *testing.T) {
	var got int64
	var gotErr error
	r := chi.NewRouter()
	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = IDParam(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/42", nil))
	require.NoError(t, gotErr)
	assert.EqualValues(t, 42, got)

	for _, raw := range []string{"0", "-3", "x"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/"+raw, nil))
		assert.ErrorIs(t, gotErr, ErrValidation, raw)
	}
}

func TestValidateFoldsFieldErrors(t *testing.T) {
	type input struct {
		Name string `validate:"required,max=5"`
	}
	v := validator.New()

	require.NoError(t, Validate(v, input{Name: "posts"}))

	err := Validate(v, input{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name failed required")

	err = Validate(v, input{Name: "too-long"})
	assert.Contains(t, err.Error(), "name failed max")
}
