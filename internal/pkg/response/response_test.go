package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	require.NoError(t, DecodeJSON(io.NopCloser(strings.NewReader(`{"name":"echo"}`)), &v))
	assert.Equal(t, "echo", v.Name)

	err := DecodeJSON(io.NopCloser(strings.NewReader(`{"name":"a"}{"name":"b"}`)), &v)
	assert.ErrorIs(t, err, ErrTrailingData)

	big := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	assert.Error(t, DecodeJSON(io.NopCloser(strings.NewReader(big)), &v))
}

func TestEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WithMeta(w, []int{1, 2}, NewMeta(45, 2, 20))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.Pages)
	assert.True(t, resp.Meta.HasNext)
	assert.True(t, resp.Meta.HasPrev)

	w = httptest.NewRecorder()
	ValidationError(w, map[string]string{"amount": "must be at least 1"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be at least 1", resp.Error.Details["amount"])
}

func TestTooManyRequestsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, 200*time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	TooManyRequests(w, 4*time.Second)
	assert.Equal(t, "4", w.Header().Get("Retry-After"))
}
