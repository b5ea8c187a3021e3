package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepo struct {
	messages []models.Message
	created  []*models.Message
	listErr  error
	crtErr   error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, message *models.Message) error {
	if f.crtErr != nil {
		return f.crtErr
	}
	message.ID = uuid.New()
	message.CreatedAt = time.Now().UTC()
	f.created = append(f.created, message)
	f.messages = append(f.messages, *message)
	return nil
}

// ListPage serves matching rows newest first with offset paging, mirroring
// the SQL the real repository issues.
func (f *fakeRepo) ListPage(ctx context.Context, pred Predicate, page, size int) ([]models.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var matching []models.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		if pred.Matches(f.messages[i]) {
			matching = append(matching, f.messages[i])
		}
	}
	offset := page * size
	if offset >= len(matching) {
		return nil, nil
	}
	end := offset + size
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}

type fakePublisher struct {
	events []MessageEvent
	err    error
}

func (f *fakePublisher) PublishMessage(ctx context.Context, event MessageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, errors.New("user not found")
}

func newTestService(t *testing.T, repo Repository, publisher EventPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, nil, publisher, nil, logger.New(logger.Options{ServiceName: "chat-test"}), config.ChatConfig{PageSize: 20, MaxContentLen: 4000})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedHistory(repo *fakeRepo, sender uuid.UUID, count int) {
	base := time.Now().UTC().Add(-time.Duration(count) * time.Minute)
	for i := 0; i < count; i++ {
		repo.messages = append(repo.messages, models.Message{
			ID:        uuid.New(),
			Content:   fmt.Sprintf("message %d", i),
			SenderID:  sender,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestHistoryPagesThroughBacklog(t *testing.T) {
	repo := &fakeRepo{}
	sender := uuid.New()
	seedHistory(repo, sender, 45)
	svc := newTestService(t, repo, nil)
	viewer := uuid.New()

	page0, err := svc.History(context.Background(), HistoryParams{ViewerID: viewer, Kind: ContextCommunity})
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(page0.Messages) != 20 {
		t.Fatalf("expected 20 rows on page 0, got %d", len(page0.Messages))
	}
	if !page0.HasMore {
		t.Fatal("expected more pages after page 0")
	}
	if page0.Messages[0].Content != "message 25" || page0.Messages[19].Content != "message 44" {
		t.Fatalf("page 0 should hold the newest 20 in ascending order, got %q..%q",
			page0.Messages[0].Content, page0.Messages[19].Content)
	}

	page1, err := svc.History(context.Background(), HistoryParams{ViewerID: viewer, Kind: ContextCommunity, Page: 1})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Messages) != 20 || !page1.HasMore {
		t.Fatalf("expected full page 1 with more remaining, got %d rows hasMore=%v", len(page1.Messages), page1.HasMore)
	}

	page2, err := svc.History(context.Background(), HistoryParams{ViewerID: viewer, Kind: ContextCommunity, Page: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Messages) != 5 {
		t.Fatalf("expected 5 remaining rows, got %d", len(page2.Messages))
	}
	if page2.HasMore {
		t.Fatal("short page must disable further backfill")
	}
	if page2.Messages[0].Content != "message 0" {
		t.Fatalf("oldest row should lead the last page, got %q", page2.Messages[0].Content)
	}
}

func TestHistoryAscendingOrder(t *testing.T) {
	repo := &fakeRepo{}
	seedHistory(repo, uuid.New(), 10)
	svc := newTestService(t, repo, nil)

	result, err := svc.History(context.Background(), HistoryParams{ViewerID: uuid.New(), Kind: ContextCommunity})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for i := 1; i < len(result.Messages); i++ {
		if result.Messages[i].CreatedAt.Before(result.Messages[i-1].CreatedAt) {
			t.Fatalf("messages out of order at index %d", i)
		}
	}
}

func TestHistoryRepeatedPageZeroIsIdentical(t *testing.T) {
	repo := &fakeRepo{}
	seedHistory(repo, uuid.New(), 30)
	svc := newTestService(t, repo, nil)
	viewer := uuid.New()

	first, err := svc.History(context.Background(), HistoryParams{ViewerID: viewer, Kind: ContextCommunity})
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := svc.History(context.Background(), HistoryParams{ViewerID: viewer, Kind: ContextCommunity})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(first.Messages) != len(second.Messages) {
		t.Fatalf("page sizes differ: %d vs %d", len(first.Messages), len(second.Messages))
	}
	for i := range first.Messages {
		if first.Messages[i].ID != second.Messages[i].ID {
			t.Fatalf("page content differs at index %d", i)
		}
	}
}

func TestSendBlankContentIsNoOp(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, nil)

	result, err := svc.Send(context.Background(), SendParams{
		SenderID: uuid.New(),
		Kind:     ContextCommunity,
		Content:  "   \n\t ",
	})
	if err != nil {
		t.Fatalf("blank send should not error: %v", err)
	}
	if !result.NoOp {
		t.Fatal("expected no-op result")
	}
	if len(repo.created) != 0 {
		t.Fatal("no storage call may be made for blank content")
	}
}

func TestSendDirectWithoutPeerFails(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, nil)

	_, err := svc.Send(context.Background(), SendParams{
		SenderID: uuid.New(),
		Kind:     ContextDirect,
		Content:  "hello",
	})
	if err == nil {
		t.Fatal("expected error for direct send without a peer")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendCommunityPersistsBroadcastRow(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	svc := newTestService(t, repo, publisher)
	sender := uuid.New()

	result, err := svc.Send(context.Background(), SendParams{
		SenderID: sender,
		Kind:     ContextCommunity,
		Content:  " hello ",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Message == nil || result.Message.ReceiverID != nil {
		t.Fatal("community message must have no receiver")
	}
	if result.Message.Content != "hello" {
		t.Fatalf("content should be trimmed, got %q", result.Message.Content)
	}
	if result.Message.SenderID != sender {
		t.Fatal("sender id not preserved")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.events[0].MessageID != result.Message.ID {
		t.Fatal("event should carry the persisted row id")
	}
}

func TestSendDirectBindsPeerAsReceiver(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, nil)
	sender := uuid.New()
	peer := uuid.New()

	result, err := svc.Send(context.Background(), SendParams{
		SenderID: sender,
		Kind:     ContextDirect,
		PeerID:   peer,
		Content:  "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Message.ReceiverID == nil || *result.Message.ReceiverID != peer {
		t.Fatal("direct message must bind the peer as receiver")
	}
}

func TestSendSucceedsWhenPublishFails(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{err: errors.New("feed down")}
	svc := newTestService(t, repo, publisher)

	result, err := svc.Send(context.Background(), SendParams{
		SenderID: uuid.New(),
		Kind:     ContextCommunity,
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("send must not fail on publish error: %v", err)
	}
	if result.Message == nil {
		t.Fatal("message should still be persisted")
	}
}

func TestSendAttachesSenderProfile(t *testing.T) {
	repo := &fakeRepo{}
	sender := uuid.New()
	users := &fakeUsers{users: map[uuid.UUID]*models.User{
		sender: {ID: sender, FullName: "Dolores Reyes"},
	}}
	svc, err := NewService(repo, users, nil, nil, logger.New(logger.Options{ServiceName: "chat-test"}), config.ChatConfig{PageSize: 20})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Send(context.Background(), SendParams{
		SenderID: sender,
		Kind:     ContextCommunity,
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Message.Sender == nil || result.Message.Sender.FullName != "Dolores Reyes" {
		t.Fatal("sender profile should be joined onto the persisted message")
	}
}

func TestSendStoreErrorSurfacesAsDependency(t *testing.T) {
	repo := &fakeRepo{crtErr: errors.New("connection reset")}
	svc := newTestService(t, repo, nil)

	_, err := svc.Send(context.Background(), SendParams{
		SenderID: uuid.New(),
		Kind:     ContextCommunity,
		Content:  "hello",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
