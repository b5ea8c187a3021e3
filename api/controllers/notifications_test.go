package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/internal/notifications"
)

type testNotificationsService struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	markReadFn    func(ctx context.Context, recipientID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	unreadFn      func(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, recipientID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *testNotificationsService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.unreadFn != nil {
		return s.unreadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *testNotificationsService) Fanout(ctx context.Context, params notifications.FanoutParams) (*notifications.FanoutResult, error) {
	return nil, nil
}

func (s *testNotificationsService) DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error) {
	return 0, nil
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestListNotificationsForwardsQueryParams(t *testing.T) {
	recipientID := uuid.New()
	var got notifications.ListParams
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{}, nil
		},
	}

	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10&cursor=abc&unreadOnly=true", nil), recipientID)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.RecipientID != recipientID {
		t.Fatalf("unexpected recipient %s", got.RecipientID)
	}
	if got.Limit != 10 || got.Cursor != "abc" || !got.UnreadOnly {
		t.Fatalf("query params not forwarded: %+v", got)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=zero", nil), uuid.New())
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	recipientID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, rid, nid uuid.UUID) error {
			called = true
			if rid != recipientID {
				t.Fatalf("unexpected recipient %s", rid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil), recipientID)
	req = addRouteParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatal("response missing read flag")
	}
}

func TestMarkNotificationReadMissingAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
	req = addRouteParam(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/invalid/read", nil), uuid.New())
	req = addRouteParam(req, "notificationId", "invalid")
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadReturnsCount(t *testing.T) {
	recipientID := uuid.New()
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, rid uuid.UUID) (int64, error) {
			if rid != recipientID {
				t.Fatalf("unexpected recipient %s", rid)
			}
			return 5, nil
		},
	}

	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil), recipientID)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 5 {
		t.Fatalf("expected updated=5 got %v", envelope.Data["updated"])
	}
}

func TestUnreadNotificationsCount(t *testing.T) {
	svc := &testNotificationsService{
		unreadFn: func(ctx context.Context, rid uuid.UUID) (int64, error) {
			return 3, nil
		},
	}
	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil), uuid.New())
	resp := httptest.NewRecorder()
	UnreadNotificationsCount(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["unread"] != 3 {
		t.Fatalf("expected unread=3 got %v", envelope.Data["unread"])
	}
}
