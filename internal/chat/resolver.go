package chat

import (
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/google/uuid"
)

// ContextKind identifies which slice of the message log a viewer is reading.
type ContextKind string

const (
	// ContextCommunity selects the broadcast wall shared by the whole village.
	ContextCommunity ContextKind = "community"
	// ContextDirect selects the private 1:1 stream between the viewer and one peer.
	ContextDirect ContextKind = "direct"
	// ContextAdminSupport selects every direct message the viewer has exchanged
	// with any administrator. The peer is deliberately unbound: messages with
	// different admins interleave into one stream, matching how the resident
	// support inbox has always behaved.
	ContextAdminSupport ContextKind = "admin_support"
)

// IsValid reports whether the kind is one of the supported contexts.
func (k ContextKind) IsValid() bool {
	switch k {
	case ContextCommunity, ContextDirect, ContextAdminSupport:
		return true
	}
	return false
}

// Predicate is the resolved filter for one conversation context. It is the
// single source of truth for visibility: the repository renders it into SQL
// and the live feed tests incoming rows against it before appending.
type Predicate struct {
	Kind     ContextKind
	ViewerID uuid.UUID
	PeerID   uuid.UUID
}

// Resolve computes the predicate for a viewer and requested context.
// Direct contexts require a peer; community ignores one.
func Resolve(viewerID uuid.UUID, kind ContextKind, peerID uuid.UUID) (Predicate, error) {
	if viewerID == uuid.Nil {
		return Predicate{}, pkgerrors.New(pkgerrors.CodeValidation, "viewer id required")
	}
	if !kind.IsValid() {
		return Predicate{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid conversation context")
	}
	if kind == ContextDirect && peerID == uuid.Nil {
		return Predicate{}, pkgerrors.New(pkgerrors.CodeValidation, "direct context requires a peer")
	}
	if kind != ContextDirect {
		peerID = uuid.Nil
	}
	return Predicate{Kind: kind, ViewerID: viewerID, PeerID: peerID}, nil
}

// Matches reports whether a message row belongs to this predicate's context.
func (p Predicate) Matches(msg models.Message) bool {
	switch p.Kind {
	case ContextCommunity:
		return msg.ReceiverID == nil
	case ContextDirect:
		if msg.ReceiverID == nil {
			return false
		}
		a, b := msg.SenderID, *msg.ReceiverID
		return (a == p.ViewerID && b == p.PeerID) || (a == p.PeerID && b == p.ViewerID)
	case ContextAdminSupport:
		if msg.ReceiverID == nil {
			return false
		}
		return msg.SenderID == p.ViewerID || *msg.ReceiverID == p.ViewerID
	}
	return false
}

// Equal reports whether two predicates select the same message slice.
func (p Predicate) Equal(other Predicate) bool {
	if p.Kind != other.Kind {
		return false
	}
	switch p.Kind {
	case ContextCommunity:
		return true
	case ContextDirect:
		samePair := (p.ViewerID == other.ViewerID && p.PeerID == other.PeerID) ||
			(p.ViewerID == other.PeerID && p.PeerID == other.ViewerID)
		return samePair
	default:
		return p.ViewerID == other.ViewerID
	}
}
