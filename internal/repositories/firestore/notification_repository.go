package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/foodbuddy/api/internal/domain"
	pfirestore "github.com/foodbuddy/api/internal/platform/firestore"
	repositories "github.com/foodbuddy/api/internal/repositories"
)

const notificationsCollection = "notifications"

// NotificationRepository persists the append-only notification feed.
type NotificationRepository struct {
	base     *pfirestore.BaseRepository[notificationDocument]
	provider *pfirestore.Provider
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil)
	return &NotificationRepository{base: base, provider: provider}, nil
}

// Insert appends a feed entry, failing when the ID already exists.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.base == nil {
		return errors.New("notification repository not initialised")
	}
	if strings.TrimSpace(notification.ID) == "" {
		return errors.New("notification repository: notification id is required")
	}

	_, err := r.base.Create(ctx, notification.ID, fromDomainNotification(notification))
	return err
}

// ListByRecipient returns the recipient's feed newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository not initialised")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return domain.CursorPage[domain.Notification]{}, errors.New("notification repository: recipient id is required")
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeNotificationListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, fmt.Errorf("notification repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("recipientId", "==", recipientID)
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeNotificationListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Notification, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, toDomainNotification(doc.ID, doc.Data, doc.CreateTime))
	}

	return domain.CursorPage[domain.Notification]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// MarkRead flips IsRead on the recipient's notification. A notification owned
// by someone else reports not found rather than leaking its existence.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	recipientID = strings.TrimSpace(recipientID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientID == "" || notificationID == "" {
		return domain.Notification{}, errors.New("notification repository: recipient id and notification id are required")
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, notificationID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		current, err := r.base.Decode(ctx, snap)
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(current.Data.RecipientID), recipientID) {
			return pfirestore.NewNotFound("notifications.markRead", fmt.Errorf("notification %s not found for recipient", notificationID))
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "isRead", Value: true},
		})
	}); err != nil {
		return domain.Notification{}, err
	}

	latest, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return toDomainNotification(latest.ID, latest.Data, latest.CreateTime), nil
}

type notificationDocument struct {
	RecipientID    string    `firestore:"recipientId"`
	RecipientRole  string    `firestore:"recipientRole"`
	Type           string    `firestore:"type"`
	Title          string    `firestore:"title"`
	Message        string    `firestore:"message"`
	RelatedOrderID *string   `firestore:"relatedOrderId,omitempty"`
	IsRead         bool      `firestore:"isRead"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func fromDomainNotification(notification domain.Notification) notificationDocument {
	return notificationDocument{
		RecipientID:    strings.TrimSpace(notification.RecipientID),
		RecipientRole:  string(notification.RecipientRole),
		Type:           string(notification.Type),
		Title:          notification.Title,
		Message:        notification.Message,
		RelatedOrderID: notification.RelatedOrderID,
		IsRead:         notification.IsRead,
		CreatedAt:      notification.CreatedAt.UTC(),
	}
}

func toDomainNotification(id string, doc notificationDocument, createTime time.Time) domain.Notification {
	notification := domain.Notification{
		ID:             id,
		RecipientID:    doc.RecipientID,
		RecipientRole:  domain.Role(doc.RecipientRole),
		Type:           domain.NotificationType(doc.Type),
		Title:          doc.Title,
		Message:        doc.Message,
		RelatedOrderID: doc.RelatedOrderID,
		IsRead:         doc.IsRead,
		CreatedAt:      doc.CreatedAt,
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = createTime
	}
	return notification
}

func encodeNotificationListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeNotificationListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)
