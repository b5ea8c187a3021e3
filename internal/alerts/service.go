package alerts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amendezcabrera/villagelink-backend/internal/notifications"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	dbtypes "github.com/amendezcabrera/villagelink-backend/pkg/db/types"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	"github.com/amendezcabrera/villagelink-backend/pkg/geo"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service defines alert management and broadcast operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	List(ctx context.Context, params ListParams) ([]models.Alert, error)
	Update(ctx context.Context, params UpdateParams) (*models.Alert, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ActiveZones(ctx context.Context) ([]models.Alert, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResidentLister resolves the recipient pool for broadcasts.
type ResidentLister interface {
	ListResidents(ctx context.Context) ([]models.User, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Notifier fans a broadcast alert out as per-recipient notifications.
type Notifier interface {
	Fanout(ctx context.Context, params notifications.FanoutParams) (*notifications.FanoutResult, error)
	DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error)
}

type service struct {
	repo      Repository
	residents ResidentLister
	notifier  Notifier
	logg      *logger.Logger
}

// CreateParams describes a new alert. Recipients, when set, pins the
// broadcast to an explicit list; otherwise targeting falls back to the
// affected-area polygon and finally to every active resident.
type CreateParams struct {
	Title        string
	Body         string
	Category     enums.AlertCategory
	AuthorID     uuid.UUID
	IsUrgent     bool
	ExpiresAt    *time.Time
	AffectedArea *types.Polygon
	Recipients   []uuid.UUID
}

// CreateResult reports the persisted alert and how the fan-out went.
type CreateResult struct {
	Alert  *models.Alert               `json:"alert"`
	Fanout *notifications.FanoutResult `json:"fanout"`
}

// ListParams filters the alert listing.
type ListParams struct {
	ActiveOnly bool
	Category   string
	Limit      int
}

// UpdateParams carries partial edits to an existing alert. Nil fields are
// left untouched.
type UpdateParams struct {
	ID           uuid.UUID
	Title        *string
	Body         *string
	Category     *enums.AlertCategory
	IsUrgent     *bool
	ExpiresAt    *time.Time
	ClearExpiry  bool
	AffectedArea *types.Polygon
	ClearArea    bool
}

// NewService wires alert dependencies.
func NewService(repo Repository, residents ResidentLister, notifier Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts repository required")
	}
	if residents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resident lister required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, residents: residents, notifier: notifier, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	title := strings.TrimSpace(params.Title)
	body := strings.TrimSpace(params.Body)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert title required")
	}
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert body required")
	}
	if !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid alert category")
	}
	if params.AuthorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	if params.AffectedArea != nil && len(*params.AffectedArea) < 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affected area needs at least three vertices")
	}
	if params.ExpiresAt != nil && params.ExpiresAt.Before(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
	}

	recipients, err := s.resolveRecipients(ctx, params)
	if err != nil {
		return nil, err
	}

	alert := &models.Alert{
		Title:        title,
		Body:         body,
		Category:     params.Category,
		AuthorID:     params.AuthorID,
		IsUrgent:     params.IsUrgent || params.Category == enums.AlertCategoryEmergency,
		ExpiresAt:    params.ExpiresAt,
		AffectedArea: params.AffectedArea,
		RecipientIDs: dbtypes.UUIDArray(recipients),
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist alert")
	}

	// The alert row is durable; a partial fan-out is reported to the caller
	// but does not roll the alert back.
	fanout, fanoutErr := s.notifier.Fanout(ctx, notifications.FanoutParams{
		Alert:      *alert,
		Recipients: recipients,
	})
	result := &CreateResult{Alert: alert, Fanout: fanout}
	if fanoutErr != nil {
		if pkgerrors.As(fanoutErr).Code() == pkgerrors.CodePartialFanout {
			return result, fanoutErr
		}
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, fanoutErr, "alert broadcast fan-out")
	}
	return result, nil
}

// resolveRecipients picks the target set: explicit list first, then the
// polygon match on resident pins, then every active resident. Urgent
// village-wide broadcasts widen to every active account so admins see
// emergencies on their own devices too.
func (s *service) resolveRecipients(ctx context.Context, params CreateParams) ([]uuid.UUID, error) {
	if len(params.Recipients) > 0 {
		return params.Recipients, nil
	}

	if params.AffectedArea != nil {
		residents, err := s.residents.ListResidents(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residents for broadcast")
		}
		var inside []uuid.UUID
		for _, resident := range residents {
			if !resident.HasLocation() {
				continue
			}
			point := types.LatLng{Lat: *resident.Latitude, Lng: *resident.Longitude}
			if geo.Contains(*params.AffectedArea, point) {
				inside = append(inside, resident.ID)
			}
		}
		return inside, nil
	}

	if params.IsUrgent || params.Category == enums.AlertCategoryEmergency {
		ids, err := s.residents.ListActiveIDs(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts for broadcast")
		}
		return ids, nil
	}

	residents, err := s.residents.ListResidents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residents for broadcast")
	}
	ids := make([]uuid.UUID, 0, len(residents))
	for _, resident := range residents {
		ids = append(ids, resident.ID)
	}
	return ids, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load alert")
	}
	return alert, nil
}

func (s *service) List(ctx context.Context, params ListParams) ([]models.Alert, error) {
	alerts, err := s.repo.List(ctx, listAlertsParams{
		ActiveOnly: params.ActiveOnly,
		Category:   params.Category,
		Now:        time.Now().UTC(),
		Limit:      params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	return alerts, nil
}

func (s *service) Update(ctx context.Context, params UpdateParams) (*models.Alert, error) {
	alert, err := s.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert title required")
		}
		alert.Title = title
	}
	if params.Body != nil {
		body := strings.TrimSpace(*params.Body)
		if body == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert body required")
		}
		alert.Body = body
	}
	if params.Category != nil {
		if !params.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid alert category")
		}
		alert.Category = *params.Category
	}
	if params.IsUrgent != nil {
		alert.IsUrgent = *params.IsUrgent
	}
	if params.ClearExpiry {
		alert.ExpiresAt = nil
	} else if params.ExpiresAt != nil {
		alert.ExpiresAt = params.ExpiresAt
	}
	if params.ClearArea {
		alert.AffectedArea = nil
	} else if params.AffectedArea != nil {
		if len(*params.AffectedArea) < 3 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "affected area needs at least three vertices")
		}
		alert.AffectedArea = params.AffectedArea
	}

	if err := s.repo.Update(ctx, alert); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update alert")
	}
	return alert, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}

	// Notifications go first so the cascade is visible even when the FK is
	// missing in dev databases.
	if _, err := s.notifier.DeleteByAlert(ctx, id); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "alert_id", id.String()), "delete alert notifications failed", err)
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete alert")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
	}
	return nil
}

func (s *service) ActiveZones(ctx context.Context) ([]models.Alert, error) {
	zones, err := s.repo.ListActiveZones(ctx, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active zones")
	}
	return zones, nil
}

func (s *service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	purged, err := s.repo.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge expired alerts")
	}
	return purged, nil
}
