package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/repositories"
)

var (
	errNotificationRepositoryRequired = errors.New("notification service: repository is required")
	errNotificationClockRequired      = errors.New("notification service: clock is required")
)

// ErrNotificationInvalidInput indicates the caller supplied invalid input.
var ErrNotificationInvalidInput = errors.New("notification service: invalid input")

// ErrNotificationNotFound indicates the requested notification does not exist.
var ErrNotificationNotFound = errors.New("notification service: not found")

// ErrNotificationUnavailable indicates the persistence layer cannot fulfil the request.
var ErrNotificationUnavailable = errors.New("notification service: unavailable")

const notificationIDPrefix = "ntf_"

// NotificationServiceDeps wires persistence and the user directory for the
// notification feed.
type NotificationServiceDeps struct {
	Repository  repositories.NotificationRepository
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type notificationService struct {
	repo   repositories.NotificationRepository
	users  repositories.UserRepository
	newID  func() string
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewNotificationService constructs a NotificationService enforcing dependency validation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Repository == nil {
		return nil, errNotificationRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errNotificationClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return notificationIDPrefix + ulid.Make().String() }
	}

	service := &notificationService{
		repo:   deps.Repository,
		users:  deps.Users,
		newID:  idGen,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}
	return service, nil
}

// Notify records a single feed entry. Failures are logged and swallowed so a
// dropped notification never fails the operation that triggered it.
func (s *notificationService) Notify(ctx context.Context, cmd NotifyCommand) {
	if s == nil || s.repo == nil {
		return
	}

	recipientID := strings.TrimSpace(cmd.RecipientID)
	if recipientID == "" {
		return
	}

	role := cmd.RecipientRole
	if role == "" && s.users != nil {
		// Callers that only hold an account id leave the role blank; resolve
		// it from the directory so the feed entry stays attributable.
		if user, err := s.users.FindByID(ctx, recipientID); err == nil {
			role = user.Role
		}
	}

	notification := domain.Notification{
		ID:             strings.TrimSpace(s.newID()),
		RecipientID:    recipientID,
		RecipientRole:  role,
		Type:           cmd.Type,
		Title:          strings.TrimSpace(cmd.Title),
		Message:        strings.TrimSpace(cmd.Message),
		RelatedOrderID: optionalString(cmd.RelatedOrderID),
		CreatedAt:      s.now(),
	}
	if notification.ID == "" {
		notification.ID = notificationIDPrefix + ulid.Make().String()
	}

	if err := s.repo.Insert(ctx, notification); err != nil {
		s.logger(ctx, "notification.dispatch_failed", map[string]any{
			"recipientID": recipientID,
			"type":        string(cmd.Type),
			"error":       err.Error(),
		})
	}
}

// NotifyRole fans a notification out to every account holding the role.
// Directory lookup failures are logged, not propagated.
func (s *notificationService) NotifyRole(ctx context.Context, role domain.Role, cmd NotifyCommand) {
	if s == nil || s.repo == nil || s.users == nil {
		return
	}

	recipientIDs, err := s.users.ListIDsByRole(ctx, role)
	if err != nil {
		s.logger(ctx, "notification.role_lookup_failed", map[string]any{
			"role":  string(role),
			"error": err.Error(),
		})
		return
	}

	for _, recipientID := range recipientIDs {
		entry := cmd
		entry.RecipientID = recipientID
		entry.RecipientRole = role
		s.Notify(ctx, entry)
	}
}

// List returns the recipient's feed, newest first.
func (s *notificationService) List(ctx context.Context, recipientID string, pager Pagination) (domain.CursorPage[Notification], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Notification]{}, ErrNotificationUnavailable
	}

	rid := strings.TrimSpace(recipientID)
	if rid == "" {
		return domain.CursorPage[Notification]{}, ErrNotificationInvalidInput
	}

	page, err := s.repo.ListByRecipient(ctx, rid, pager)
	if err != nil {
		return domain.CursorPage[Notification]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Notification{}
	}
	return page, nil
}

// MarkRead flips the read flag on one of the recipient's own notifications.
func (s *notificationService) MarkRead(ctx context.Context, recipientID string, notificationID string) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, ErrNotificationUnavailable
	}

	rid := strings.TrimSpace(recipientID)
	nid := strings.TrimSpace(notificationID)
	if rid == "" || nid == "" {
		return Notification{}, ErrNotificationInvalidInput
	}

	notification, err := s.repo.MarkRead(ctx, rid, nid)
	if err != nil {
		return Notification{}, s.translateRepoError(err)
	}
	return notification, nil
}

func (s *notificationService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrNotificationNotFound
		case repoErr.IsUnavailable():
			return ErrNotificationUnavailable
		}
		return ErrNotificationUnavailable
	}
	return ErrNotificationUnavailable
}
