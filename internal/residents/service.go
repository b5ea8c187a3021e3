package residents

import (
	"context"
	"errors"
	"strings"

	"github.com/amendezcabrera/villagelink-backend/internal/users"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/maps"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the resident directory and map pin operations.
type Service interface {
	List(ctx context.Context) ([]users.UserDTO, error)
	Admins(ctx context.Context) ([]users.UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error)
	UpdateLocation(ctx context.Context, params UpdateLocationParams) (*users.UserDTO, error)
	UpdateProfile(ctx context.Context, params UpdateProfileParams) (*users.UserDTO, error)
	SuggestAddress(ctx context.Context, query string) ([]AddressSuggestion, error)
	ResolveAddress(ctx context.Context, placeID string) (*ResolvedAddress, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListResidents(ctx context.Context) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
	UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type service struct {
	store userStore
	maps  *maps.Client
}

// UpdateLocationParams moves a resident's pin on the village map.
type UpdateLocationParams struct {
	ResidentID uuid.UUID
	Location   types.LatLng
}

// UpdateProfileParams carries partial profile edits. Nil fields are left
// untouched.
type UpdateProfileParams struct {
	ResidentID   uuid.UUID
	FullName     *string
	Phone        *string
	AvatarURL    *string
	AddressBlock *string
	AddressLot   *string
}

// AddressSuggestion is one autocomplete candidate for a typed address.
type AddressSuggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}

// ResolvedAddress is the coordinate result for a picked suggestion.
type ResolvedAddress struct {
	FormattedAddress string       `json:"formattedAddress"`
	Location         types.LatLng `json:"location"`
}

// NewService wires resident dependencies. The maps client is optional; the
// address helpers degrade to a dependency error when it is absent.
func NewService(store userStore, mapsClient *maps.Client) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users store required")
	}
	return &service{store: store, maps: mapsClient}, nil
}

func (s *service) List(ctx context.Context) ([]users.UserDTO, error) {
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residents")
	}
	out := make([]users.UserDTO, 0, len(residents))
	for i := range residents {
		out = append(out, *users.FromModel(&residents[i]))
	}
	return out, nil
}

// Admins lists the active administrator contacts a resident can open a
// support chat with.
func (s *service) Admins(ctx context.Context) ([]users.UserDTO, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	out := make([]users.UserDTO, 0, len(admins))
	for i := range admins {
		out = append(out, *users.FromModel(&admins[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	resident, err := s.loadResident(ctx, id)
	if err != nil {
		return nil, err
	}
	return users.FromModel(resident), nil
}

func (s *service) UpdateLocation(ctx context.Context, params UpdateLocationParams) (*users.UserDTO, error) {
	if params.Location.Lat < -90 || params.Location.Lat > 90 ||
		params.Location.Lng < -180 || params.Location.Lng > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	resident, err := s.loadResident(ctx, params.ResidentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateLocation(ctx, resident.ID, params.Location.Lat, params.Location.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update resident location")
	}
	resident.Latitude = &params.Location.Lat
	resident.Longitude = &params.Location.Lng
	return users.FromModel(resident), nil
}

func (s *service) UpdateProfile(ctx context.Context, params UpdateProfileParams) (*users.UserDTO, error) {
	resident, err := s.loadResident(ctx, params.ResidentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if params.FullName != nil {
		name := strings.TrimSpace(*params.FullName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name required")
		}
		updates["full_name"] = name
		resident.FullName = name
	}
	if params.Phone != nil {
		updates["phone"] = params.Phone
		resident.Phone = params.Phone
	}
	if params.AvatarURL != nil {
		updates["avatar_url"] = params.AvatarURL
		resident.AvatarURL = params.AvatarURL
	}
	if params.AddressBlock != nil {
		updates["address_block"] = params.AddressBlock
		resident.AddressBlock = params.AddressBlock
	}
	if params.AddressLot != nil {
		updates["address_lot"] = params.AddressLot
		resident.AddressLot = params.AddressLot
	}

	if len(updates) == 0 {
		return users.FromModel(resident), nil
	}
	if err := s.store.UpdateProfile(ctx, resident.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update resident profile")
	}
	return users.FromModel(resident), nil
}

func (s *service) SuggestAddress(ctx context.Context, query string) ([]AddressSuggestion, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}

	resp, err := s.maps.Autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}

	suggestions := make([]AddressSuggestion, 0, len(resp))
	for _, item := range resp {
		suggestions = append(suggestions, AddressSuggestion{
			PlaceID:     item.PlaceID,
			Description: item.Description,
		})
	}
	return suggestions, nil
}

func (s *service) ResolveAddress(ctx context.Context, placeID string) (*ResolvedAddress, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place_id is required")
	}

	place, err := s.maps.ResolvePlace(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if place.Latitude == 0 && place.Longitude == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place location missing")
	}

	return &ResolvedAddress{
		FormattedAddress: place.FormattedAddress,
		Location: types.LatLng{
			Lat: place.Latitude,
			Lng: place.Longitude,
		},
	}, nil
}

func (s *service) loadResident(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resident id required")
	}
	resident, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resident not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
	}
	return resident, nil
}
