package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amendezcabrera/villagelink-backend/internal/notifications"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeAlertRepo struct {
	alerts    map[uuid.UUID]*models.Alert
	createErr error
	purged    int64
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[uuid.UUID]*models.Alert)}
}

func (f *fakeAlertRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	if f.createErr != nil {
		return f.createErr
	}
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now().UTC()
	f.alerts[alert.ID] = alert
	return nil
}

func (f *fakeAlertRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	if alert, ok := f.alerts[id]; ok {
		copied := *alert
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAlertRepo) List(ctx context.Context, params listAlertsParams) ([]models.Alert, error) {
	var out []models.Alert
	for _, alert := range f.alerts {
		if params.ActiveOnly && alert.Expired(params.Now) {
			continue
		}
		if params.Category != "" && string(alert.Category) != params.Category {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (f *fakeAlertRepo) Update(ctx context.Context, alert *models.Alert) error {
	if _, ok := f.alerts[alert.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *alert
	f.alerts[alert.ID] = &copied
	return nil
}

func (f *fakeAlertRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, ok := f.alerts[id]; !ok {
		return 0, nil
	}
	delete(f.alerts, id)
	return 1, nil
}

func (f *fakeAlertRepo) ListActiveZones(ctx context.Context, now time.Time) ([]models.Alert, error) {
	var out []models.Alert
	for _, alert := range f.alerts {
		if alert.AffectedArea == nil || alert.Expired(now) {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (f *fakeAlertRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	for id, alert := range f.alerts {
		if alert.ExpiresAt != nil && alert.ExpiresAt.Before(cutoff) {
			delete(f.alerts, id)
			purged++
		}
	}
	f.purged = purged
	return purged, nil
}

type fakeResidents struct {
	residents []models.User
	admins    []models.User
	err       error
}

func (f *fakeResidents) ListResidents(ctx context.Context) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.residents, nil
}

func (f *fakeResidents) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]uuid.UUID, 0, len(f.residents)+len(f.admins))
	for _, user := range f.residents {
		ids = append(ids, user.ID)
	}
	for _, user := range f.admins {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

type fakeNotifier struct {
	fanouts   []notifications.FanoutParams
	fanoutErr error
	deleted   []uuid.UUID
	deleteErr error
}

func (f *fakeNotifier) Fanout(ctx context.Context, params notifications.FanoutParams) (*notifications.FanoutResult, error) {
	f.fanouts = append(f.fanouts, params)
	if f.fanoutErr != nil {
		return &notifications.FanoutResult{Failed: len(params.Recipients)}, f.fanoutErr
	}
	return &notifications.FanoutResult{Created: len(params.Recipients)}, nil
}

func (f *fakeNotifier) DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, alertID)
	return 1, nil
}

func residentAt(lat, lng float64) models.User {
	return models.User{
		ID:        uuid.New(),
		Role:      enums.UserRoleResident,
		IsActive:  true,
		Latitude:  &lat,
		Longitude: &lng,
	}
}

func newTestService(t *testing.T, repo Repository, residents ResidentLister, notifier Notifier) Service {
	t.Helper()
	svc, err := NewService(repo, residents, notifier, logger.New(logger.Options{ServiceName: "alerts-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateBroadcastsToAllResidentsByDefault(t *testing.T) {
	repo := newFakeAlertRepo()
	residents := &fakeResidents{residents: []models.User{
		residentAt(14.60, 121.00),
		residentAt(14.61, 121.01),
	}}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, residents, notifier)

	result, err := svc.Create(context.Background(), CreateParams{
		Title:    "Garbage collection moved",
		Body:     "Pickup shifts to Thursday this week.",
		Category: enums.AlertCategoryGarbageCollection,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.Fanout.Created != 2 {
		t.Fatalf("expected every resident notified, got %+v", result.Fanout)
	}
	if len(result.Alert.RecipientIDs) != 2 {
		t.Fatalf("recipient snapshot should be recorded on the alert, got %d", len(result.Alert.RecipientIDs))
	}
}

func TestCreateEmergencyBroadcastReachesAdmins(t *testing.T) {
	repo := newFakeAlertRepo()
	admin := models.User{ID: uuid.New(), Role: enums.UserRoleAdmin, IsActive: true}
	residents := &fakeResidents{
		residents: []models.User{residentAt(14.60, 121.00)},
		admins:    []models.User{admin},
	}
	svc := newTestService(t, repo, residents, &fakeNotifier{})

	result, err := svc.Create(context.Background(), CreateParams{
		Title:    "Typhoon signal raised",
		Body:     "Secure loose items and charge your devices.",
		Category: enums.AlertCategoryEmergency,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(result.Alert.RecipientIDs) != 2 {
		t.Fatalf("urgent broadcast should reach every active account, got %d", len(result.Alert.RecipientIDs))
	}
	var adminIncluded bool
	for _, id := range result.Alert.RecipientIDs {
		if id == admin.ID {
			adminIncluded = true
		}
	}
	if !adminIncluded {
		t.Fatal("admins must receive urgent broadcasts")
	}
}

func TestCreateGeofencedAlertTargetsResidentsInsidePolygon(t *testing.T) {
	repo := newFakeAlertRepo()
	inside := residentAt(14.605, 121.005)
	outside := residentAt(14.700, 121.100)
	unpinned := models.User{ID: uuid.New(), Role: enums.UserRoleResident, IsActive: true}
	residents := &fakeResidents{residents: []models.User{inside, outside, unpinned}}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, residents, notifier)

	area := types.Polygon{
		{Lat: 14.60, Lng: 121.00},
		{Lat: 14.61, Lng: 121.00},
		{Lat: 14.61, Lng: 121.01},
		{Lat: 14.60, Lng: 121.01},
	}
	result, err := svc.Create(context.Background(), CreateParams{
		Title:        "Water interruption",
		Body:         "Mains repair in the east zone.",
		Category:     enums.AlertCategoryWaterInterruption,
		AuthorID:     uuid.New(),
		AffectedArea: &area,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(result.Alert.RecipientIDs) != 1 || result.Alert.RecipientIDs[0] != inside.ID {
		t.Fatalf("only the resident inside the polygon should be targeted, got %v", result.Alert.RecipientIDs)
	}
}

func TestCreateExplicitRecipientsSkipResolution(t *testing.T) {
	repo := newFakeAlertRepo()
	residents := &fakeResidents{err: errors.New("must not be called")}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, residents, notifier)

	picked := []uuid.UUID{uuid.New(), uuid.New()}
	result, err := svc.Create(context.Background(), CreateParams{
		Title:      "Board meeting",
		Body:       "Homeowner board convenes Friday.",
		Category:   enums.AlertCategoryGeneral,
		AuthorID:   uuid.New(),
		Recipients: picked,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(result.Alert.RecipientIDs) != 2 {
		t.Fatalf("explicit recipients must be used as-is, got %v", result.Alert.RecipientIDs)
	}
}

func TestCreateEmergencyForcesUrgent(t *testing.T) {
	repo := newFakeAlertRepo()
	svc := newTestService(t, repo, &fakeResidents{}, &fakeNotifier{})

	result, err := svc.Create(context.Background(), CreateParams{
		Title:    "Fire on block 3",
		Body:     "Evacuate towards the main gate.",
		Category: enums.AlertCategoryEmergency,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !result.Alert.IsUrgent {
		t.Fatal("emergency alerts must always be urgent")
	}
}

func TestCreateValidationFailures(t *testing.T) {
	svc := newTestService(t, newFakeAlertRepo(), &fakeResidents{}, &fakeNotifier{})

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"missing title", CreateParams{Body: "b", Category: enums.AlertCategoryGeneral, AuthorID: uuid.New()}},
		{"missing body", CreateParams{Title: "t", Category: enums.AlertCategoryGeneral, AuthorID: uuid.New()}},
		{"bad category", CreateParams{Title: "t", Body: "b", Category: enums.AlertCategory("weather"), AuthorID: uuid.New()}},
		{"missing author", CreateParams{Title: "t", Body: "b", Category: enums.AlertCategoryGeneral}},
		{"degenerate polygon", CreateParams{Title: "t", Body: "b", Category: enums.AlertCategoryGeneral, AuthorID: uuid.New(),
			AffectedArea: &types.Polygon{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.params)
			if err == nil {
				t.Fatal("expected error")
			}
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateSurvivesPartialFanout(t *testing.T) {
	repo := newFakeAlertRepo()
	notifier := &fakeNotifier{fanoutErr: pkgerrors.New(pkgerrors.CodePartialFanout, "notified 1 of 2 recipients")}
	svc := newTestService(t, repo, &fakeResidents{residents: []models.User{residentAt(1, 1), residentAt(2, 2)}}, notifier)

	result, err := svc.Create(context.Background(), CreateParams{
		Title:    "Power outage",
		Body:     "Rotating brownouts this evening.",
		Category: enums.AlertCategoryPowerOutage,
		AuthorID: uuid.New(),
	})
	if err == nil {
		t.Fatal("partial fan-out should surface as an error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodePartialFanout {
		t.Fatalf("expected partial fanout code, got %v", err)
	}
	if result == nil || result.Alert == nil || result.Alert.ID == uuid.Nil {
		t.Fatal("alert must stay persisted despite the partial fan-out")
	}
	if len(repo.alerts) != 1 {
		t.Fatal("alert row must not be rolled back")
	}
}

func TestUpdatePartialEdits(t *testing.T) {
	repo := newFakeAlertRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeResidents{}, notifier)

	created, err := svc.Create(context.Background(), CreateParams{
		Title:    "Community event",
		Body:     "Fiesta setup on the plaza.",
		Category: enums.AlertCategoryCommunityEvent,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	newBody := "Fiesta setup moved to Saturday."
	updated, err := svc.Update(context.Background(), UpdateParams{ID: created.Alert.ID, Body: &newBody})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Body != newBody {
		t.Fatalf("body edit lost: %q", updated.Body)
	}
	if updated.Title != "Community event" {
		t.Fatal("untouched fields must survive a partial update")
	}
}

func TestUpdateMissingAlert(t *testing.T) {
	svc := newTestService(t, newFakeAlertRepo(), &fakeResidents{}, &fakeNotifier{})

	title := "x"
	_, err := svc.Update(context.Background(), UpdateParams{ID: uuid.New(), Title: &title})
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeleteRemovesAlertAndNotifications(t *testing.T) {
	repo := newFakeAlertRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeResidents{}, notifier)

	created, err := svc.Create(context.Background(), CreateParams{
		Title:    "Old notice",
		Body:     "Stale announcement.",
		Category: enums.AlertCategoryGeneral,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Delete(context.Background(), created.Alert.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(repo.alerts) != 0 {
		t.Fatal("alert should be gone")
	}
	if len(notifier.deleted) != 1 || notifier.deleted[0] != created.Alert.ID {
		t.Fatal("alert notifications should be deleted alongside")
	}
}

func TestDeleteContinuesWhenNotificationCleanupFails(t *testing.T) {
	repo := newFakeAlertRepo()
	notifier := &fakeNotifier{deleteErr: errors.New("db hiccup")}
	svc := newTestService(t, repo, &fakeResidents{}, notifier)

	created, err := svc.Create(context.Background(), CreateParams{
		Title:    "Notice",
		Body:     "Body.",
		Category: enums.AlertCategoryGeneral,
		AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Delete(context.Background(), created.Alert.ID); err != nil {
		t.Fatalf("delete must proceed despite cleanup failure: %v", err)
	}
	if len(repo.alerts) != 0 {
		t.Fatal("alert should be gone")
	}
}

func TestActiveZonesSkipsExpiredAndArealess(t *testing.T) {
	repo := newFakeAlertRepo()
	svc := newTestService(t, repo, &fakeResidents{}, &fakeNotifier{})

	area := types.Polygon{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 1}, {Lat: 2, Lng: 2}}
	past := time.Now().UTC().Add(-time.Hour)
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New(), AffectedArea: &area}
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New(), AffectedArea: &area, ExpiresAt: &past}
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New()}

	zones, err := svc.ActiveZones(context.Background())
	if err != nil {
		t.Fatalf("ActiveZones() error: %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("expected 1 live zone, got %d", len(zones))
	}
}

func TestPurgeExpired(t *testing.T) {
	repo := newFakeAlertRepo()
	svc := newTestService(t, repo, &fakeResidents{}, &fakeNotifier{})

	past := time.Now().UTC().Add(-2 * time.Hour)
	future := time.Now().UTC().Add(2 * time.Hour)
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New(), ExpiresAt: &past}
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New(), ExpiresAt: &future}
	repo.alerts[uuid.New()] = &models.Alert{ID: uuid.New()}

	purged, err := svc.PurgeExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged alert, got %d", purged)
	}
	if len(repo.alerts) != 2 {
		t.Fatalf("unexpired alerts must remain, got %d", len(repo.alerts))
	}
}
