package controllers

import (
	"net/http"
	"strings"

	"github.com/amendezcabrera/villagelink-backend/api/responses"
	"github.com/amendezcabrera/villagelink-backend/api/validators"
	"github.com/amendezcabrera/villagelink-backend/internal/residents"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
)

type updateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

type updateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	AddressBlock *string `json:"address_block,omitempty"`
	AddressLot   *string `json:"address_lot,omitempty"`
}

// ListResidents returns the active resident directory.
func ListResidents(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// ListAdminContacts returns the active admins a resident can open a
// support chat with.
func ListAdminContacts(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		admins, err := svc.Admins(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, admins)
	}
}

// ResidentProfile returns the caller's own profile.
func ResidentProfile(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// ResidentDetail returns a single resident's profile by id.
func ResidentDetail(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		residentID, err := routeUUID(r, "residentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), residentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// ResidentUpdateLocation pins the caller's home on the village map.
func ResidentUpdateLocation(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateLocationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateLocation(r.Context(), residents.UpdateLocationParams{
			ResidentID: userID,
			Location:   types.LatLng{Lat: body.Latitude, Lng: body.Longitude},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// ResidentUpdateProfile applies partial edits to the caller's profile.
func ResidentUpdateProfile(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), residents.UpdateProfileParams{
			ResidentID:   userID,
			FullName:     body.FullName,
			Phone:        body.Phone,
			AvatarURL:    body.AvatarURL,
			AddressBlock: body.AddressBlock,
			AddressLot:   body.AddressLot,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// AddressSuggest proxies address autocomplete for the location picker.
func AddressSuggest(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		suggestions, err := svc.SuggestAddress(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}

// AddressResolve turns a picked suggestion into coordinates.
func AddressResolve(svc residents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "residents service unavailable"))
			return
		}

		placeID := strings.TrimSpace(r.URL.Query().Get("placeId"))
		if placeID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "placeId is required"))
			return
		}

		resolved, err := svc.ResolveAddress(r.Context(), placeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolved)
	}
}
