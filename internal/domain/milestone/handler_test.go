package milestone

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoapp/echo-rewards/internal/domain/ledger/ledgertest"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
	"github.com/echoapp/echo-rewards/internal/middleware"
)

func TestListHandler(t *testing.T) {
	userID := uuid.New()
	e := NewEvaluator(testCatalog(t), fakeStreaks{streak.NewState(userID)}, fakeCounts{}, ledgertest.New())
	h := NewHandler(e)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/milestones", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/milestones", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	w = httptest.NewRecorder()
	h.List(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []MilestoneStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 5)
	for _, s := range body.Data {
		assert.Equal(t, StatusLocked, s.Status)
	}
}
