package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/api/responses"
	"github.com/amendezcabrera/villagelink-backend/api/validators"
	"github.com/amendezcabrera/villagelink-backend/internal/alerts"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
)

type createAlertRequest struct {
	Title        string         `json:"title" validate:"required,max=200"`
	Body         string         `json:"body" validate:"required"`
	Category     string         `json:"category" validate:"required"`
	IsUrgent     bool           `json:"is_urgent"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	AffectedArea *types.Polygon `json:"affected_area,omitempty"`
	Recipients   []string       `json:"recipients,omitempty"`
}

type updateAlertRequest struct {
	Title        *string        `json:"title,omitempty" validate:"omitempty,max=200"`
	Body         *string        `json:"body,omitempty"`
	Category     *string        `json:"category,omitempty"`
	IsUrgent     *bool          `json:"is_urgent,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	ClearExpiry  bool           `json:"clear_expiry,omitempty"`
	AffectedArea *types.Polygon `json:"affected_area,omitempty"`
	ClearArea    bool           `json:"clear_area,omitempty"`
}

// AlertCreate publishes a community alert and fans notifications out to the
// resolved recipients. A partial fan-out still returns the persisted alert.
func AlertCreate(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		authorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createAlertRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseAlertCategory(body.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		recipients, err := parseUUIDList(body.Recipients)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), alerts.CreateParams{
			Title:        body.Title,
			Body:         body.Body,
			Category:     category,
			AuthorID:     authorID,
			IsUrgent:     body.IsUrgent,
			ExpiresAt:    body.ExpiresAt,
			AffectedArea: body.AffectedArea,
			Recipients:   recipients,
		})
		if err != nil {
			// A partial fan-out still produced a durable alert; surface both.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodePartialFanout && result != nil {
				responses.WriteSuccessStatus(w, http.StatusCreated, result)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AlertList returns alerts, newest and most urgent first.
func AlertList(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		params := alerts.ListParams{
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
		}

		var err error
		params.ActiveOnly, err = validators.ParseQueryBool(r, "activeOnly", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// AlertGet returns a single alert with its author preloaded.
func AlertGet(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		alertID, err := routeUUID(r, "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		alert, err := svc.Get(r.Context(), alertID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, alert)
	}
}

// AlertUpdate applies partial edits to an existing alert.
func AlertUpdate(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		alertID, err := routeUUID(r, "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAlertRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := alerts.UpdateParams{
			ID:           alertID,
			Title:        body.Title,
			Body:         body.Body,
			IsUrgent:     body.IsUrgent,
			ExpiresAt:    body.ExpiresAt,
			ClearExpiry:  body.ClearExpiry,
			AffectedArea: body.AffectedArea,
			ClearArea:    body.ClearArea,
		}

		if body.Category != nil {
			category, err := enums.ParseAlertCategory(*body.Category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			params.Category = &category
		}

		alert, err := svc.Update(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, alert)
	}
}

// AlertDelete removes an alert along with its notifications.
func AlertDelete(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		alertID, err := routeUUID(r, "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), alertID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// AlertActiveZones returns the unexpired alerts that carry a map polygon,
// for rendering affected areas on the village map.
func AlertActiveZones(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		zones, err := svc.ActiveZones(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, zones)
	}
}

func parseUUIDList(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient id")
		}
		out = append(out, id)
	}
	return out, nil
}
