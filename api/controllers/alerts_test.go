package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/internal/alerts"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
)

type testAlertsService struct {
	createFn func(ctx context.Context, params alerts.CreateParams) (*alerts.CreateResult, error)
	listFn   func(ctx context.Context, params alerts.ListParams) ([]models.Alert, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
	zonesFn  func(ctx context.Context) ([]models.Alert, error)
}

func (s *testAlertsService) Create(ctx context.Context, params alerts.CreateParams) (*alerts.CreateResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return &alerts.CreateResult{Alert: &models.Alert{}}, nil
}

func (s *testAlertsService) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return &models.Alert{}, nil
}

func (s *testAlertsService) List(ctx context.Context, params alerts.ListParams) ([]models.Alert, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *testAlertsService) Update(ctx context.Context, params alerts.UpdateParams) (*models.Alert, error) {
	return &models.Alert{}, nil
}

func (s *testAlertsService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func (s *testAlertsService) ActiveZones(ctx context.Context) ([]models.Alert, error) {
	if s.zonesFn != nil {
		return s.zonesFn(ctx)
	}
	return nil, nil
}

func (s *testAlertsService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func TestAlertCreateForwardsAuthor(t *testing.T) {
	authorID := uuid.New()
	var got alerts.CreateParams
	svc := &testAlertsService{
		createFn: func(ctx context.Context, params alerts.CreateParams) (*alerts.CreateResult, error) {
			got = params
			return &alerts.CreateResult{Alert: &models.Alert{}}, nil
		},
	}

	payload, _ := json.Marshal(map[string]any{
		"title":    "Water interruption",
		"body":     "Phase 2 supply off until 5pm",
		"category": "water_interruption",
	})
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/admin/v1/alerts", bytes.NewReader(payload)), authorID)
	resp := httptest.NewRecorder()
	AlertCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.AuthorID != authorID {
		t.Fatalf("unexpected author %s", got.AuthorID)
	}
	if got.Category != enums.AlertCategoryWaterInterruption {
		t.Fatalf("unexpected category %q", got.Category)
	}
}

func TestAlertCreateRejectsUnknownCategory(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"title":    "Test",
		"body":     "Body",
		"category": "earthquake",
	})
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/admin/v1/alerts", bytes.NewReader(payload)), uuid.New())
	resp := httptest.NewRecorder()
	AlertCreate(&testAlertsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAlertCreatePartialFanoutStillCreated(t *testing.T) {
	svc := &testAlertsService{
		createFn: func(ctx context.Context, params alerts.CreateParams) (*alerts.CreateResult, error) {
			result := &alerts.CreateResult{Alert: &models.Alert{}}
			return result, pkgerrors.New(pkgerrors.CodePartialFanout, "notified 2 of 3 recipients")
		},
	}
	payload, _ := json.Marshal(map[string]any{
		"title":    "Brownout",
		"body":     "Rotating outage tonight",
		"category": "power_outage",
	})
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/admin/v1/alerts", bytes.NewReader(payload)), uuid.New())
	resp := httptest.NewRecorder()
	AlertCreate(svc, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("partial fan-out should still return 201, got %d", resp.Code)
	}
}

func TestAlertListForwardsFilters(t *testing.T) {
	var got alerts.ListParams
	svc := &testAlertsService{
		listFn: func(ctx context.Context, params alerts.ListParams) ([]models.Alert, error) {
			got = params
			return nil, nil
		},
	}
	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/alerts?activeOnly=true&category=general&limit=25", nil), uuid.New())
	resp := httptest.NewRecorder()
	AlertList(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !got.ActiveOnly || got.Category != "general" || got.Limit != 25 {
		t.Fatalf("filters not forwarded: %+v", got)
	}
}

func TestAlertDeleteNotFound(t *testing.T) {
	svc := &testAlertsService{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
		},
	}
	alertID := uuid.New()
	req := asCaller(httptest.NewRequest(http.MethodDelete, "/api/admin/v1/alerts/"+alertID.String(), nil), uuid.New())
	req = addRouteParam(req, "alertId", alertID.String())
	resp := httptest.NewRecorder()
	AlertDelete(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
