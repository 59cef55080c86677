package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sop-portal/portal-backend/internal/auth"
	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/notifications/websocket"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListForRole(ctx context.Context, role string, limit, offset int) ([]SentNotification, error) {
	args := m.Called(ctx, role, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SentNotification), args.Error(1)
}

func (m *MockStore) MarkAsRead(ctx context.Context, role string, notificationID uuid.UUID) error {
	args := m.Called(ctx, role, notificationID)
	return args.Error(0)
}

func (m *MockStore) Subscribe(ctx context.Context, sub *Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockStore) ListTemplates(ctx context.Context) ([]NotificationTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]NotificationTemplate), args.Error(1)
}

func newHandlerRouter(store Store) *gin.Engine {
	return newHandlerRouterWithManager(store, nil)
}

func newHandlerRouterWithManager(store Store, wsManager *websocket.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ierr.ErrorHandler())
	api := r.Group("/api/v1", auth.Middleware(nil, false))
	NewHandler(store, wsManager, zap.NewNop()).RegisterRoutes(api)
	return r
}

func send(r http.Handler, method, path, role string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(auth.HeaderRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_List(t *testing.T) {
	store := new(MockStore)
	r := newHandlerRouter(store)
	store.On("ListForRole", mock.Anything, "reviewer", 10, 5).
		Return([]SentNotification{{ID: uuid.New(), RecipientRole: "reviewer", Channel: ChannelInApp}}, nil)

	w := send(r, http.MethodGet, "/api/v1/notifications?limit=10&offset=5", "reviewer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	store.AssertExpectations(t)
}

func TestHandler_ListRejectsBadPaging(t *testing.T) {
	r := newHandlerRouter(new(MockStore))

	w := send(r, http.MethodGet, "/api/v1/notifications?limit=-1", "reviewer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_MarkAsRead(t *testing.T) {
	store := new(MockStore)
	r := newHandlerRouter(store)
	id := uuid.New()
	other := uuid.New()
	store.On("MarkAsRead", mock.Anything, "document-owner", id).Return(nil)
	store.On("MarkAsRead", mock.Anything, "document-owner", other).
		Return(ierr.NewError("notification not found").Mark(ierr.ErrNotFound))

	w := send(r, http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", "document-owner", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = send(r, http.MethodPost, "/api/v1/notifications/"+other.String()+"/read", "document-owner", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodPost, "/api/v1/notifications/not-a-uuid/read", "document-owner", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Subscribe(t *testing.T) {
	store := new(MockStore)
	r := newHandlerRouter(store)
	store.On("Subscribe", mock.Anything, mock.MatchedBy(func(s *Subscription) bool {
		return s.Role == "document-owner" && s.Channel == ChannelEmail && s.Address == "owner@example.com"
	})).Return(nil)

	body := []byte(`{"role":"document-owner","channel":"EMAIL","address":"owner@example.com"}`)
	w := send(r, http.MethodPost, "/api/v1/notifications/subscriptions", "document-controller", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = send(r, http.MethodPost, "/api/v1/notifications/subscriptions", "document-controller", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertExpectations(t)
}

func TestHandler_ListTemplates(t *testing.T) {
	store := new(MockStore)
	r := newHandlerRouter(store)
	store.On("ListTemplates", mock.Anything).Return(DefaultTemplates(), nil)

	w := send(r, http.MethodGet, "/api/v1/notifications/templates", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var templates []NotificationTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	assert.Len(t, templates, len(DefaultTemplates()))
}

func TestHandler_Connections(t *testing.T) {
	m := websocket.NewManager(zap.NewNop(), nil)
	defer m.Close()
	r := newHandlerRouterWithManager(new(MockStore), m)

	w := send(r, http.MethodGet, "/api/v1/notifications/connections", "document-controller", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Connections []websocket.ConnectionInfo `json:"connections"`
		Count       int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Connections)
	assert.Zero(t, body.Count)

	w = send(r, http.MethodGet, "/api/v1/notifications/connections", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodGet, "/api/v1/notifications/connections", "reviewer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_ConnectionsNotRoutedWithoutManager(t *testing.T) {
	r := newHandlerRouter(new(MockStore))

	w := send(r, http.MethodGet, "/api/v1/notifications/connections", "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
