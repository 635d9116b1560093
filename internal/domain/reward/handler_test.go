package reward

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoapp/echo-rewards/internal/middleware"
)

func postEvent(t *testing.T, h *Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	w := httptest.NewRecorder()
	h.Ingest(w, httptest.NewRequest(http.MethodPost, "/internal/v1/events", &buf))
	return w
}

func TestIngestProcessesEvent(t *testing.T) {
	hs := newHarness(t)
	h := NewHandler(hs.coord, nil)
	userID := uuid.New()

	w := postEvent(t, h, EventRequest{
		ID:        "echo-1",
		Kind:      "ECHO_SENT",
		UserID:    userID.String(),
		Sentiment: "POSITIVE",
		Timestamp: "2026-03-10T09:00:00Z",
		Timezone:  "Europe/Berlin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data EventResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "echo-1", body.Data.EventID)
	assert.Equal(t, "2026-03-10", body.Data.LocalDate.String())
	assert.Equal(t, int64(12), body.Data.Credits, "first echo plus seasonal bonus")
	require.Len(t, body.Data.Transitions, 1)
	assert.Equal(t, "kindness", string(body.Data.Transitions[0].Kind))
}

func TestIngestValidation(t *testing.T) {
	h := NewHandler(newHarness(t).coord, nil)

	w := postEvent(t, h, EventRequest{ID: "x", Kind: "WAVE", UserID: "nope", Timestamp: "yesterday"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	h.Ingest(w, httptest.NewRequest(http.MethodPost, "/internal/v1/events", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestRateLimitedPerUser(t *testing.T) {
	h := NewHandler(newHarness(t).coord, middleware.NewRateLimiter(0.001, 1))
	userID := uuid.New()
	req := func(id string, user uuid.UUID) EventRequest {
		return EventRequest{ID: id, Kind: "APP_OPENED", UserID: user.String(), Timestamp: "2026-03-10T09:00:00Z"}
	}

	assert.Equal(t, http.StatusOK, postEvent(t, h, req("a", userID)).Code)
	limited := postEvent(t, h, req("b", userID))
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, postEvent(t, h, req("c", uuid.New())).Code)
}
