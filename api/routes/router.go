package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amendezcabrera/villagelink-backend/api/controllers"
	"github.com/amendezcabrera/villagelink-backend/api/middleware"
	"github.com/amendezcabrera/villagelink-backend/internal/alerts"
	"github.com/amendezcabrera/villagelink-backend/internal/auth"
	"github.com/amendezcabrera/villagelink-backend/internal/chat"
	"github.com/amendezcabrera/villagelink-backend/internal/notifications"
	"github.com/amendezcabrera/villagelink-backend/internal/realtime"
	"github.com/amendezcabrera/villagelink-backend/internal/residents"
	"github.com/amendezcabrera/villagelink-backend/pkg/auth/session"
	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	"github.com/amendezcabrera/villagelink-backend/pkg/db"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Sessions      sessionManager
	AuthService   auth.Service
	ChatService   chat.Service
	Notifications notifications.Service
	Alerts        alerts.Service
	Residents     residents.Service
	Hub           *realtime.Hub
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
			r.Post("/change-password", controllers.AuthChangePassword(p.AuthService, logg))
		})
	})

	// Realtime feed authenticates via query param inside the handler; the
	// websocket handshake cannot carry an Authorization header.
	r.Get("/ws/chat", controllers.ChatSocket(p.Hub, p.ChatService, cfg, p.Sessions, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", controllers.MessageHistory(p.ChatService, logg))
			r.Post("/", controllers.MessageSend(p.ChatService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.AlertList(p.Alerts, logg))
			r.Get("/zones", controllers.AlertActiveZones(p.Alerts, logg))
			r.Get("/{alertId}", controllers.AlertGet(p.Alerts, logg))
		})

		r.Route("/residents", func(r chi.Router) {
			r.Get("/", controllers.ListResidents(p.Residents, logg))
			r.Get("/admins", controllers.ListAdminContacts(p.Residents, logg))
			r.Get("/me", controllers.ResidentProfile(p.Residents, logg))
			r.Put("/me", controllers.ResidentUpdateProfile(p.Residents, logg))
			r.Put("/me/location", controllers.ResidentUpdateLocation(p.Residents, logg))
			r.Get("/{residentId}", controllers.ResidentDetail(p.Residents, logg))
		})

		r.Route("/address", func(r chi.Router) {
			r.Get("/suggest", controllers.AddressSuggest(p.Residents, logg))
			r.Get("/resolve", controllers.AddressResolve(p.Residents, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Route("/residents", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateResident(p.AuthService, logg))
			r.Post("/{residentId}/deactivate", controllers.AdminDeactivateResident(p.AuthService, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", controllers.AlertCreate(p.Alerts, logg))
			r.Put("/{alertId}", controllers.AlertUpdate(p.Alerts, logg))
			r.Delete("/{alertId}", controllers.AlertDelete(p.Alerts, logg))
		})
	})

	return r
}
