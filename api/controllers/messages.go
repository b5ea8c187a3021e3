package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/api/responses"
	"github.com/amendezcabrera/villagelink-backend/api/validators"
	"github.com/amendezcabrera/villagelink-backend/internal/chat"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
)

const maxHistoryPage = 1 << 20

// MessageHistory returns one page of conversation history for the caller.
// Page 0 is the newest slice; rows come back oldest-first within the page.
func MessageHistory(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}

		viewerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, peerID, err := conversationQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 0, 0, maxHistoryPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), chat.HistoryParams{
			ViewerID: viewerID,
			Kind:     kind,
			PeerID:   peerID,
			Page:     page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type sendMessageRequest struct {
	Kind    string  `json:"kind" validate:"required,oneof=community direct admin_support"`
	PeerID  *string `json:"peer_id,omitempty"`
	Content string  `json:"content"`
}

// MessageSend persists a message into the caller's active conversation.
func MessageSend(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}

		senderID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sendMessageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		peerID := uuid.Nil
		if body.PeerID != nil && *body.PeerID != "" {
			peerID, err = uuid.Parse(*body.PeerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid peer id"))
				return
			}
		}

		result, err := svc.Send(r.Context(), chat.SendParams{
			SenderID: senderID,
			Kind:     chat.ContextKind(body.Kind),
			PeerID:   peerID,
			Content:  body.Content,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.NoOp {
			responses.WriteSuccess(w, result)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func conversationQuery(r *http.Request) (chat.ContextKind, uuid.UUID, error) {
	kind := chat.ContextKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = chat.ContextCommunity
	}
	if !kind.IsValid() {
		return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown conversation kind")
	}

	peerID := uuid.Nil
	if raw := strings.TrimSpace(r.URL.Query().Get("peerId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid peer id")
		}
		peerID = parsed
	}
	return kind, peerID, nil
}
