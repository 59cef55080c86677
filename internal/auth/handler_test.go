package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	ierr "sop-portal/portal-backend/internal/errors"
)

func newIssueRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ierr.ErrorHandler())
	api := r.Group("/api/v1")
	RegisterRoutes(api, api.Group("", Middleware(s, true)), NewHandler(s), true)
	return r
}

func postToken(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckIssueKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	s := NewService("secret", "sop-portal", time.Hour).WithIssueKeyHash(string(hash))

	assert.NoError(t, s.CheckIssueKey("open-sesame"))
	assert.True(t, ierr.IsPermissionDenied(s.CheckIssueKey("guess")))

	unconfigured := NewService("secret", "sop-portal", time.Hour)
	assert.True(t, ierr.IsPermissionDenied(unconfigured.CheckIssueKey("open-sesame")))
}

func TestHashIssueKey(t *testing.T) {
	hash, err := HashIssueKey("open-sesame")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("open-sesame")))
}

func TestHandlerIssueToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	s := NewService("secret", "sop-portal", time.Hour).WithIssueKeyHash(string(hash))
	r := newIssueRouter(s)

	w := postToken(r, `{"subject":"user-1","role":"document-owner","key":"open-sesame"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := s.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "document-owner", claims.Role)

	w = postToken(r, `{"subject":"user-1","role":"admin","key":"guess"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postToken(r, `{"subject":"user-1","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerMe(t *testing.T) {
	s := NewService("secret", "sop-portal", time.Hour)
	r := newIssueRouter(s)
	token, _, err := s.IssueToken("user-2", "reviewer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"user-2","role":"reviewer"}`, w.Body.String())
}
