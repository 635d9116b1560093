package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("admin-secret", time.Hour)
	p := Principal{AdminID: uuid.New(), Email: "ops@echo.app", Role: RoleAdmin}

	token, err := svc.GenerateToken(p)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, p.AdminID, claims.AdminID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewJWTService("other-secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	_, err = svc.GenerateToken(Principal{AdminID: uuid.New(), Role: "moderator"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("admin-secret", -time.Minute)
	token, err := svc.GenerateToken(Principal{AdminID: uuid.New(), Role: RoleSupport})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequirePermission(t *testing.T) {
	svc := NewJWTService("admin-secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AuthMiddleware(svc)(RequirePermission(PermManageSeasons)(ok))

	tests := []struct {
		role Role
		want int
	}{
		{RoleSuperAdmin, http.StatusOK},
		{RoleAdmin, http.StatusOK},
		{RoleSupport, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			token, err := svc.GenerateToken(Principal{AdminID: uuid.New(), Role: tt.role})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequirePermission_ForbiddenWithoutPrincipal(t *testing.T) {
	mw := RequirePermission(PermGrantCredits)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
