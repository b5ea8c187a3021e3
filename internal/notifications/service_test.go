package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	paginationpkg "github.com/amendezcabrera/villagelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	created       []*models.Notification
	createFn      func(ctx context.Context, notification *models.Notification) error
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	markReadFn    func(ctx context.Context, recipientID, notificationID uuid.UUID) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	unreadFn      func(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, notification); err != nil {
			return err
		}
	}
	notification.ID = uuid.New()
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, recipientID, notificationID)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (f *fakeRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if f.unreadFn != nil {
		return f.unreadFn(ctx, recipientID)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, nil, logger.New(logger.Options{ServiceName: "notifications-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceListNotifications(t *testing.T) {
	newest := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}
	older := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	recipient := uuid.New()

	repo := &fakeRepository{
		listFn: func(_ context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			if params.RecipientID != recipient {
				t.Fatalf("unexpected recipient %s", params.RecipientID)
			}
			return []models.Notification{newest, older}, &paginationpkg.Cursor{CreatedAt: older.CreatedAt, ID: older.ID}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.List(context.Background(), ListParams{RecipientID: recipient, Limit: 2})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected next-page cursor")
	}
}

func TestServiceListRequiresRecipient(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Cursor: "!!not-base64!!"})
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceMarkRead(t *testing.T) {
	recipient := uuid.New()
	target := uuid.New()
	repo := &fakeRepository{
		markReadFn: func(_ context.Context, recipientID, notificationID uuid.UUID) (notificationMarkResult, error) {
			if recipientID != recipient || notificationID != target {
				t.Fatal("wrong ids passed to repository")
			}
			return notificationMarkResult{Updated: true, Found: true}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	if err := svc.MarkRead(context.Background(), recipient, target); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}
}

func TestServiceMarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(_ context.Context, _, _ uuid.UUID) (notificationMarkResult, error) {
			return notificationMarkResult{}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestServiceMarkAllRead(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(_ context.Context, _ uuid.UUID) (int64, error) {
			return 7, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("MarkAllRead() error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 rows updated, got %d", count)
	}
}

func TestServiceUnreadCount(t *testing.T) {
	repo := &fakeRepository{
		unreadFn: func(_ context.Context, _ uuid.UUID) (int64, error) {
			return 3, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	count, err := svc.UnreadCount(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("UnreadCount() error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 unread, got %d", count)
	}
}

func broadcastAlert(author uuid.UUID, category enums.AlertCategory) models.Alert {
	return models.Alert{
		ID:       uuid.New(),
		Title:    "Water interruption",
		Body:     "Mains work on the east side tomorrow morning.",
		Category: category,
		AuthorID: author,
	}
}

func TestFanoutCreatesOneRowPerRecipient(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(t, repo)
	author := uuid.New()
	recipients := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	alert := broadcastAlert(author, enums.AlertCategoryWaterInterruption)

	result, err := svc.Fanout(context.Background(), FanoutParams{Alert: alert, Recipients: recipients})
	if err != nil {
		t.Fatalf("Fanout() error: %v", err)
	}
	if result.Created != 3 || result.Failed != 0 {
		t.Fatalf("expected 3 created, got %+v", result)
	}
	for i, row := range repo.created {
		if row.RecipientID != recipients[i] {
			t.Fatalf("row %d bound to wrong recipient", i)
		}
		if row.AlertID == nil || *row.AlertID != alert.ID {
			t.Fatalf("row %d missing alert link", i)
		}
		if row.SenderID != author {
			t.Fatalf("row %d missing author", i)
		}
		if row.Type != enums.NotificationTypeInfo {
			t.Fatalf("non-emergency alert should produce info notifications, got %s", row.Type)
		}
	}
}

func TestFanoutEmergencyIsUrgent(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(t, repo)

	_, err := svc.Fanout(context.Background(), FanoutParams{
		Alert:      broadcastAlert(uuid.New(), enums.AlertCategoryEmergency),
		Recipients: []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("Fanout() error: %v", err)
	}
	if repo.created[0].Type != enums.NotificationTypeUrgent {
		t.Fatalf("emergency alert should page as urgent, got %s", repo.created[0].Type)
	}
}

func TestFanoutSkipsDuplicateRecipients(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(t, repo)
	shared := uuid.New()

	result, err := svc.Fanout(context.Background(), FanoutParams{
		Alert:      broadcastAlert(uuid.New(), enums.AlertCategoryGeneral),
		Recipients: []uuid.UUID{shared, shared, uuid.New()},
	})
	if err != nil {
		t.Fatalf("Fanout() error: %v", err)
	}
	if result.Created != 2 {
		t.Fatalf("duplicates must collapse, got %d rows", result.Created)
	}
}

func TestFanoutContinuesPastIndividualFailures(t *testing.T) {
	failing := uuid.New()
	repo := &fakeRepository{
		createFn: func(_ context.Context, notification *models.Notification) error {
			if notification.RecipientID == failing {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.Fanout(context.Background(), FanoutParams{
		Alert:      broadcastAlert(uuid.New(), enums.AlertCategoryGeneral),
		Recipients: []uuid.UUID{uuid.New(), failing, uuid.New()},
	})
	if err == nil {
		t.Fatal("expected partial-fanout error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodePartialFanout {
		t.Fatalf("expected partial fanout code, got %v", err)
	}
	if result.Created != 2 || result.Failed != 1 {
		t.Fatalf("broadcast must continue past failures, got %+v", result)
	}
}

func TestFanoutAllFailuresIsDependencyError(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(_ context.Context, _ *models.Notification) error {
			return errors.New("db down")
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.Fanout(context.Background(), FanoutParams{
		Alert:      broadcastAlert(uuid.New(), enums.AlertCategoryGeneral),
		Recipients: []uuid.UUID{uuid.New(), uuid.New()},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code when nothing landed, got %v", err)
	}
	if result.Created != 0 || result.Failed != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFanoutEmptyRecipientsIsNoOp(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.Fanout(context.Background(), FanoutParams{
		Alert: broadcastAlert(uuid.New(), enums.AlertCategoryGeneral),
	})
	if err != nil {
		t.Fatalf("Fanout() error: %v", err)
	}
	if result.Created != 0 || len(repo.created) != 0 {
		t.Fatal("no rows may be created for an empty recipient set")
	}
}
