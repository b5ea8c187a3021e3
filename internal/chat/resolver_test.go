package chat

import (
	"testing"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/google/uuid"
)

func directMessage(sender, receiver uuid.UUID) models.Message {
	return models.Message{ID: uuid.New(), SenderID: sender, ReceiverID: &receiver}
}

func broadcastMessage(sender uuid.UUID) models.Message {
	return models.Message{ID: uuid.New(), SenderID: sender}
}

func TestResolveCommunityIgnoresPeer(t *testing.T) {
	viewer := uuid.New()
	pred, err := Resolve(viewer, ContextCommunity, uuid.New())
	if err != nil {
		t.Fatalf("resolve community: %v", err)
	}
	if pred.PeerID != uuid.Nil {
		t.Fatal("community predicate should not bind a peer")
	}
}

func TestResolveDirectRequiresPeer(t *testing.T) {
	_, err := Resolve(uuid.New(), ContextDirect, uuid.Nil)
	if err == nil {
		t.Fatal("expected error for direct context without peer")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveRejectsUnknownContext(t *testing.T) {
	_, err := Resolve(uuid.New(), ContextKind("group"), uuid.Nil)
	if err == nil {
		t.Fatal("expected error for unknown context kind")
	}
}

func TestCommunityPredicateExcludesDirectMessages(t *testing.T) {
	viewer := uuid.New()
	pred, err := Resolve(viewer, ContextCommunity, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !pred.Matches(broadcastMessage(uuid.New())) {
		t.Fatal("broadcast message should match community context")
	}
	if pred.Matches(directMessage(viewer, uuid.New())) {
		t.Fatal("direct message must never match community context")
	}
}

func TestDirectPredicateIsSymmetric(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	msg := directMessage(alice, bob)

	fromAlice, err := Resolve(alice, ContextDirect, bob)
	if err != nil {
		t.Fatalf("resolve alice side: %v", err)
	}
	fromBob, err := Resolve(bob, ContextDirect, alice)
	if err != nil {
		t.Fatalf("resolve bob side: %v", err)
	}

	if !fromAlice.Matches(msg) || !fromBob.Matches(msg) {
		t.Fatal("direct message must be visible from both sides of the pair")
	}
	if !fromAlice.Equal(fromBob) {
		t.Fatal("predicates for the same pair should be equal")
	}
}

func TestDirectPredicateExcludesThirdParties(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	msg := directMessage(alice, bob)

	pred, err := Resolve(carol, ContextDirect, bob)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pred.Matches(msg) {
		t.Fatal("a third party must not see another pair's direct message")
	}
	if pred.Matches(broadcastMessage(alice)) {
		t.Fatal("broadcast rows must not match a direct context")
	}
}

func TestAdminSupportMergesAllAdminPeers(t *testing.T) {
	resident := uuid.New()
	adminA := uuid.New()
	adminB := uuid.New()

	pred, err := Resolve(resident, ContextAdminSupport, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Messages with two distinct admins interleave into one stream. This is
	// long-standing support inbox behavior, preserved on purpose.
	if !pred.Matches(directMessage(resident, adminA)) {
		t.Fatal("message to first admin should match")
	}
	if !pred.Matches(directMessage(adminB, resident)) {
		t.Fatal("message from second admin should match")
	}
	if pred.Matches(directMessage(adminA, adminB)) {
		t.Fatal("messages between other users must not match")
	}
	if pred.Matches(broadcastMessage(resident)) {
		t.Fatal("broadcast rows must not match admin support context")
	}
}
