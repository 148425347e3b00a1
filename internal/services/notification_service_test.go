package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/foodbuddy/api/internal/domain"
)

func newNotificationServiceForTest(t *testing.T, repo *stubNotificationRepository, users *stubUserRepository, logger func(context.Context, string, map[string]any)) NotificationService {
	t.Helper()
	service, err := NewNotificationService(NotificationServiceDeps{
		Repository:  repo,
		Users:       users,
		Clock:       testClock,
		IDGenerator: func() string { return "ntf_test" },
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	return service
}

func TestNotificationServiceNotifyPersistsEntry(t *testing.T) {
	var inserted domain.Notification
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserted = notification
		return nil
	}}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, nil)

	service.Notify(context.Background(), NotifyCommand{
		RecipientID:    " user-1 ",
		RecipientRole:  domain.RoleUser,
		Type:           domain.NotificationTypeOrderPlaced,
		Title:          " Order Placed ",
		Message:        "Your order ord-1 has been placed.",
		RelatedOrderID: "ord-1",
	})

	if inserted.ID != "ntf_test" {
		t.Fatalf("ID = %q", inserted.ID)
	}
	if inserted.RecipientID != "user-1" || inserted.Title != "Order Placed" {
		t.Fatalf("entry = %+v", inserted)
	}
	if inserted.RelatedOrderID == nil || *inserted.RelatedOrderID != "ord-1" {
		t.Fatalf("related order = %v", inserted.RelatedOrderID)
	}
	if inserted.IsRead {
		t.Fatal("new entries must be unread")
	}
	if !inserted.CreatedAt.Equal(testClockTime) {
		t.Fatalf("CreatedAt = %v", inserted.CreatedAt)
	}
}

func TestNotificationServiceNotifyResolvesRoleFromDirectory(t *testing.T) {
	var inserted domain.Notification
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserted = notification
		return nil
	}}
	users := &stubUserRepository{findFunc: func(ctx context.Context, userID string) (domain.User, error) {
		return domain.User{ID: userID, Role: domain.RoleDelivery}, nil
	}}
	service := newNotificationServiceForTest(t, repo, users, nil)

	service.Notify(context.Background(), NotifyCommand{
		RecipientID: "partner-1",
		Type:        domain.NotificationTypeOrderStatus,
		Title:       "Pickup Available",
	})

	if inserted.RecipientRole != domain.RoleDelivery {
		t.Fatalf("RecipientRole = %q, want delivery", inserted.RecipientRole)
	}
}

func TestNotificationServiceNotifyKeepsBlankRoleWhenLookupFails(t *testing.T) {
	var inserted domain.Notification
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserted = notification
		return nil
	}}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, nil)

	service.Notify(context.Background(), NotifyCommand{RecipientID: "ghost-1", Title: "Order Placed"})

	if inserted.RecipientID != "ghost-1" {
		t.Fatalf("entry = %+v", inserted)
	}
	if inserted.RecipientRole != "" {
		t.Fatalf("RecipientRole = %q, want blank", inserted.RecipientRole)
	}
}

func TestNotificationServiceNotifySwallowsInsertFailure(t *testing.T) {
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		return &repositoryErrorStub{unavailable: true}
	}}
	var loggedEvent string
	logger := func(ctx context.Context, event string, fields map[string]any) {
		loggedEvent = event
	}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, logger)

	service.Notify(context.Background(), NotifyCommand{RecipientID: "user-1", Title: "Order Placed"})

	if loggedEvent != "notification.dispatch_failed" {
		t.Fatalf("logged event = %q", loggedEvent)
	}
}

func TestNotificationServiceNotifyIgnoresBlankRecipient(t *testing.T) {
	inserts := 0
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserts++
		return nil
	}}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, nil)

	service.Notify(context.Background(), NotifyCommand{RecipientID: "  "})
	if inserts != 0 {
		t.Fatalf("inserts = %d, want 0", inserts)
	}
}

func TestNotificationServiceNotifyRoleFansOut(t *testing.T) {
	var inserted []domain.Notification
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserted = append(inserted, notification)
		return nil
	}}
	users := &stubUserRepository{roleFunc: func(ctx context.Context, role domain.Role) ([]string, error) {
		if role != domain.RoleAdmin {
			t.Fatalf("role = %s, want admin", role)
		}
		return []string{"admin-1", "admin-2"}, nil
	}}
	service := newNotificationServiceForTest(t, repo, users, nil)

	service.NotifyRole(context.Background(), domain.RoleAdmin, NotifyCommand{
		Type:    domain.NotificationTypeOrderPlaced,
		Title:   "New Order",
		Message: "Order ord-1 was placed by user user-1.",
	})

	if len(inserted) != 2 {
		t.Fatalf("inserted %d entries, want 2", len(inserted))
	}
	if inserted[0].RecipientID != "admin-1" || inserted[1].RecipientID != "admin-2" {
		t.Fatalf("recipients = %q, %q", inserted[0].RecipientID, inserted[1].RecipientID)
	}
	for _, entry := range inserted {
		if entry.RecipientRole != domain.RoleAdmin {
			t.Fatalf("role = %s, want admin", entry.RecipientRole)
		}
	}
}

func TestNotificationServiceNotifyRoleLookupFailureIsLogged(t *testing.T) {
	inserts := 0
	repo := &stubNotificationRepository{insertFunc: func(ctx context.Context, notification domain.Notification) error {
		inserts++
		return nil
	}}
	users := &stubUserRepository{roleFunc: func(ctx context.Context, role domain.Role) ([]string, error) {
		return nil, &repositoryErrorStub{unavailable: true}
	}}
	var loggedEvent string
	logger := func(ctx context.Context, event string, fields map[string]any) {
		loggedEvent = event
	}
	service := newNotificationServiceForTest(t, repo, users, logger)

	service.NotifyRole(context.Background(), domain.RoleAdmin, NotifyCommand{Title: "New Order"})

	if loggedEvent != "notification.role_lookup_failed" {
		t.Fatalf("logged event = %q", loggedEvent)
	}
	if inserts != 0 {
		t.Fatalf("inserts = %d, want 0", inserts)
	}
}

func TestNotificationServiceListReturnsEmptySlice(t *testing.T) {
	service := newNotificationServiceForTest(t, &stubNotificationRepository{}, &stubUserRepository{}, nil)

	page, err := service.List(context.Background(), "user-1", Pagination{PageSize: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items == nil {
		t.Fatal("Items must be non-nil")
	}
}

func TestNotificationServiceMarkReadTranslatesErrors(t *testing.T) {
	repo := &stubNotificationRepository{markFunc: func(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error) {
		return domain.Notification{}, &repositoryErrorStub{notFound: true}
	}}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, nil)

	_, err := service.MarkRead(context.Background(), "user-1", "ntf-1")
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestNotificationServiceMarkReadFlipsFlag(t *testing.T) {
	repo := &stubNotificationRepository{markFunc: func(ctx context.Context, recipientID string, notificationID string) (domain.Notification, error) {
		return domain.Notification{ID: notificationID, RecipientID: recipientID, IsRead: true}, nil
	}}
	service := newNotificationServiceForTest(t, repo, &stubUserRepository{}, nil)

	notification, err := service.MarkRead(context.Background(), "user-1", "ntf-1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !notification.IsRead {
		t.Fatal("IsRead = false, want true")
	}
}
