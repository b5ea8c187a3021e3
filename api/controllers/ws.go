package controllers

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/amendezcabrera/villagelink-backend/api/responses"
	"github.com/amendezcabrera/villagelink-backend/internal/chat"
	"github.com/amendezcabrera/villagelink-backend/internal/realtime"
	pkgAuth "github.com/amendezcabrera/villagelink-backend/pkg/auth"
	"github.com/amendezcabrera/villagelink-backend/pkg/auth/session"
	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsPingInterval   = 30 * time.Second
	wsMaxMessageSize = 8192
)

// ChatSocket upgrades the connection and runs the realtime message feed.
// Auth rides on a ?token= query param because browsers cannot set headers
// on a WebSocket handshake.
func ChatSocket(hub *realtime.Hub, chatSvc chat.Service, cfg *config.Config, verifier session.AccessSessionChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil || chatSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime feed unavailable"))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		claims, err := pkgAuth.ParseAccessToken(cfg.JWT, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
			return
		}

		if verifier != nil {
			ok, err := verifier.HasSession(r.Context(), claims.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
				return
			}
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
				return
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: cfg.App.IsDev(),
		})
		if err != nil {
			if logg != nil {
				logg.Error(r.Context(), "ws.accept", err)
			}
			return
		}
		conn.SetReadLimit(wsMaxMessageSize)

		sess := realtime.NewSession(claims.UserID, chatSvc, logg, cfg.Chat.ClientSendBuffer)
		hub.Register(sess)

		ctx := context.Background()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"user_id":    claims.UserID.String(),
				"session_id": sess.ID().String(),
			})
		}

		go writePump(ctx, conn, sess, logg)
		readPump(ctx, conn, hub, sess, logg)
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, hub *realtime.Hub, sess *realtime.Session, logg *logger.Logger) {
	defer func() {
		hub.Unregister(sess)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if logg != nil && websocket.CloseStatus(err) == -1 {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "ws.read")
			}
			return
		}
		sess.HandleFrame(ctx, data)
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, sess *realtime.Session, logg *logger.Logger) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case frame, ok := <-sess.Outbound():
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "ws.write")
				}
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
