package notifications

import (
	"context"
	"fmt"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/metrics"
	"github.com/amendezcabrera/villagelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Service defines notification list/read operations and alert fan-out.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Fanout(ctx context.Context, params FanoutParams) (*FanoutResult, error)
	DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error)
}

type service struct {
	repo    Repository
	metrics *metrics.FanoutMetrics
	logg    *logger.Logger
}

// ListParams configures pagination for notifications.
type ListParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// FanoutParams describes one alert broadcast to a resolved recipient set.
type FanoutParams struct {
	Alert      models.Alert
	Recipients []uuid.UUID
}

// FanoutResult reports how the broadcast went per recipient.
type FanoutResult struct {
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// NewService wires notification dependencies. Metrics are optional.
func NewService(repo Repository, fanoutMetrics *metrics.FanoutMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, metrics: fanoutMetrics, logg: logg}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listNotificationsParams{
		RecipientID: params.RecipientID,
		Limit:       params.Limit,
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, recipientID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	count, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	count, err := s.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

// DeleteByAlert removes the notifications spawned by one alert broadcast.
func (s *service) DeleteByAlert(ctx context.Context, alertID uuid.UUID) (int64, error) {
	if alertID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	count, err := s.repo.DeleteByAlert(ctx, alertID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete alert notifications")
	}
	return count, nil
}

// Fanout creates one notification row per recipient. Individual failures do
// not stop the broadcast; the result reports how many rows landed and a
// partial-fanout error carries the per-recipient failures.
func (s *service) Fanout(ctx context.Context, params FanoutParams) (*FanoutResult, error) {
	if params.Alert.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	if len(params.Recipients) == 0 {
		return &FanoutResult{}, nil
	}

	alertID := params.Alert.ID
	notificationType := params.Alert.Category.NotificationType()

	result := &FanoutResult{}
	var errs error
	seen := make(map[uuid.UUID]struct{}, len(params.Recipients))
	for _, recipientID := range params.Recipients {
		if recipientID == uuid.Nil {
			continue
		}
		if _, dup := seen[recipientID]; dup {
			continue
		}
		seen[recipientID] = struct{}{}

		notification := &models.Notification{
			RecipientID: recipientID,
			SenderID:    params.Alert.AuthorID,
			AlertID:     &alertID,
			Title:       params.Alert.Title,
			Body:        params.Alert.Body,
			Type:        notificationType,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			result.Failed++
			s.metrics.IncResult("failed")
			errs = multierr.Append(errs, fmt.Errorf("recipient %s: %w", recipientID, err))
			s.logg.Error(s.logg.WithField(ctx, "recipient_id", recipientID.String()), "notification fan-out failed for recipient", err)
			continue
		}
		result.Created++
		s.metrics.IncResult("created")
	}

	if errs != nil {
		if result.Created == 0 {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "notification fan-out failed")
		}
		return result, pkgerrors.Wrap(pkgerrors.CodePartialFanout, errs,
			fmt.Sprintf("notified %d of %d recipients", result.Created, result.Created+result.Failed))
	}
	return result, nil
}
