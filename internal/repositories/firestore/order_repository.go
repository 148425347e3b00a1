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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ordersCollection = "orders"

// OrderRepository persists orders in Firestore with optimistic locking on the
// document update time. FindByID and List surface that update time through
// Order.UpdatedAt so a later Update can detect concurrent writers.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert writes a new order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	_, err := r.base.Create(ctx, order.ID, fromDomainOrder(order, order.UpdatedAt))
	return err
}

// FindByID loads a single order. The returned UpdatedAt carries the server
// update time used as the optimistic token by Update.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// Update rewrites the order document. The write aborts when the document
// changed since the caller read it, so a concurrent transition conflicts
// instead of being silently overwritten.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := fromDomainOrder(order, time.Now().UTC())
	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		if !order.UpdatedAt.IsZero() && !snap.UpdateTime.Equal(order.UpdatedAt) {
			return status.Error(codes.Aborted, "order stale update")
		}
		return tx.Set(docRef, doc)
	}); err != nil {
		return domain.Order{}, err
	}

	latest, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(latest.ID, latest.Data, latest.CreateTime, latest.UpdateTime), nil
}

// List returns orders newest first, filtered and paginated with an opaque
// cursor token.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	userID := strings.TrimSpace(filter.UserID)
	partnerID := strings.TrimSpace(filter.DeliveryPartnerID)
	statusFilters := normaliseOrderStatuses(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if partnerID != "" {
			q = q.Where("deliveryPartnerId", "==", partnerID)
		}
		if filter.Unassigned {
			// Unassigned orders store an empty partner so equality filters work.
			q = q.Where("deliveryPartnerId", "==", "")
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

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
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, toDomainOrder(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// AssignDeliveryPartner claims an unassigned order for the partner inside a
// transaction. Losing a race, an already assigned order, or a status outside
// the accepted set all surface as conflicts.
func (r *OrderRepository) AssignDeliveryPartner(ctx context.Context, orderID string, partnerID string, statuses []domain.OrderStatus, now time.Time) (domain.Order, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	partnerID = strings.TrimSpace(partnerID)
	if orderID == "" || partnerID == "" {
		return domain.Order{}, errors.New("order repository: order id and partner id are required")
	}

	allowed := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[string(s)] = struct{}{}
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, orderID)
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
		if strings.TrimSpace(current.Data.DeliveryPartnerID) != "" {
			return pfirestore.NewConflict("orders.assign", fmt.Errorf("order %s already assigned", orderID))
		}
		if _, ok := allowed[current.Data.Status]; !ok {
			return pfirestore.NewConflict("orders.assign", fmt.Errorf("order %s is %s", orderID, current.Data.Status))
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "deliveryPartnerId", Value: partnerID},
			{Path: "updatedAt", Value: now.UTC()},
		})
	}); err != nil {
		return domain.Order{}, err
	}

	latest, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(latest.ID, latest.Data, latest.CreateTime, latest.UpdateTime), nil
}

type orderDocument struct {
	UserID                string               `firestore:"userId"`
	RestaurantID          string               `firestore:"restaurantId"`
	Items                 []orderItemDocument  `firestore:"items"`
	Totals                orderTotalsDocument  `firestore:"totals"`
	Status                string               `firestore:"status"`
	Payment               orderPaymentDocument `firestore:"payment"`
	DeliveryAddress       addressDocument      `firestore:"deliveryAddress"`
	DeliveryPartnerID     string               `firestore:"deliveryPartnerId"`
	EstimatedDeliveryTime time.Time            `firestore:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time           `firestore:"actualDeliveryTime,omitempty"`
	SpecialInstructions   string               `firestore:"specialInstructions,omitempty"`
	Review                *orderReviewDocument `firestore:"review,omitempty"`
	CancelReason          *string              `firestore:"cancelReason,omitempty"`
	CreatedAt             time.Time            `firestore:"createdAt"`
	UpdatedAt             time.Time            `firestore:"updatedAt"`
}

type orderItemDocument struct {
	MenuItemID     string   `firestore:"menuItemId"`
	Name           string   `firestore:"name"`
	UnitPrice      int64    `firestore:"unitPrice"`
	Image          string   `firestore:"image,omitempty"`
	Quantity       int      `firestore:"quantity"`
	Customizations []string `firestore:"customizations,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal    int64 `firestore:"subtotal"`
	Tax         int64 `firestore:"tax"`
	DeliveryFee int64 `firestore:"deliveryFee"`
	Total       int64 `firestore:"total"`
}

type orderPaymentDocument struct {
	Method   string  `firestore:"method"`
	Status   string  `firestore:"status"`
	IntentID *string `firestore:"intentId,omitempty"`
	RefundID *string `firestore:"refundId,omitempty"`
}

type addressDocument struct {
	Street       string `firestore:"street"`
	City         string `firestore:"city"`
	State        string `firestore:"state"`
	ZipCode      string `firestore:"zipCode"`
	Phone        string `firestore:"phone,omitempty"`
	Instructions string `firestore:"instructions,omitempty"`
}

type orderReviewDocument struct {
	Rating    int       `firestore:"rating"`
	Comment   string    `firestore:"comment,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func fromDomainOrder(order domain.Order, now time.Time) orderDocument {
	doc := orderDocument{
		UserID:       strings.TrimSpace(order.UserID),
		RestaurantID: strings.TrimSpace(order.RestaurantID),
		Items:        fromDomainOrderItems(order.Items),
		Totals: orderTotalsDocument{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			DeliveryFee: order.Totals.DeliveryFee,
			Total:       order.Totals.Total,
		},
		Status: string(order.Status),
		Payment: orderPaymentDocument{
			Method:   string(order.Payment.Method),
			Status:   string(order.Payment.Status),
			IntentID: order.Payment.IntentID,
			RefundID: order.Payment.RefundID,
		},
		DeliveryAddress: addressDocument{
			Street:       order.DeliveryAddress.Street,
			City:         order.DeliveryAddress.City,
			State:        order.DeliveryAddress.State,
			ZipCode:      order.DeliveryAddress.ZipCode,
			Phone:        order.DeliveryAddress.Phone,
			Instructions: order.DeliveryAddress.Instructions,
		},
		EstimatedDeliveryTime: order.EstimatedDeliveryTime.UTC(),
		ActualDeliveryTime:    order.ActualDeliveryTime,
		SpecialInstructions:   strings.TrimSpace(order.SpecialInstructions),
		CancelReason:          order.CancelReason,
		CreatedAt:             order.CreatedAt.UTC(),
		UpdatedAt:             now.UTC(),
	}
	if order.DeliveryPartnerID != nil {
		doc.DeliveryPartnerID = strings.TrimSpace(*order.DeliveryPartnerID)
	}
	if order.Review != nil {
		doc.Review = &orderReviewDocument{
			Rating:    order.Review.Rating,
			Comment:   order.Review.Comment,
			CreatedAt: order.Review.CreatedAt.UTC(),
		}
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument, createTime, updateTime time.Time) domain.Order {
	order := domain.Order{
		ID:           id,
		UserID:       doc.UserID,
		RestaurantID: doc.RestaurantID,
		Items:        toDomainOrderItems(doc.Items),
		Totals: domain.OrderTotals{
			Subtotal:    doc.Totals.Subtotal,
			Tax:         doc.Totals.Tax,
			DeliveryFee: doc.Totals.DeliveryFee,
			Total:       doc.Totals.Total,
		},
		Status: domain.OrderStatus(doc.Status),
		Payment: domain.OrderPayment{
			Method:   domain.PaymentMethod(doc.Payment.Method),
			Status:   domain.PaymentStatus(doc.Payment.Status),
			IntentID: doc.Payment.IntentID,
			RefundID: doc.Payment.RefundID,
		},
		DeliveryAddress: domain.Address{
			Street:       doc.DeliveryAddress.Street,
			City:         doc.DeliveryAddress.City,
			State:        doc.DeliveryAddress.State,
			ZipCode:      doc.DeliveryAddress.ZipCode,
			Phone:        doc.DeliveryAddress.Phone,
			Instructions: doc.DeliveryAddress.Instructions,
		},
		EstimatedDeliveryTime: doc.EstimatedDeliveryTime,
		ActualDeliveryTime:    doc.ActualDeliveryTime,
		SpecialInstructions:   doc.SpecialInstructions,
		CancelReason:          doc.CancelReason,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             updateTime,
	}
	if partner := strings.TrimSpace(doc.DeliveryPartnerID); partner != "" {
		order.DeliveryPartnerID = &partner
	}
	if doc.Review != nil {
		order.Review = &domain.OrderReview{
			Rating:    doc.Review.Rating,
			Comment:   doc.Review.Comment,
			CreatedAt: doc.Review.CreatedAt,
		}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = createTime
	}
	return order
}

func fromDomainOrderItems(items []domain.OrderItem) []orderItemDocument {
	if len(items) == 0 {
		return nil
	}
	docs := make([]orderItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, orderItemDocument{
			MenuItemID:     strings.TrimSpace(item.MenuItemID),
			Name:           item.Name,
			UnitPrice:      item.UnitPrice,
			Image:          item.Image,
			Quantity:       item.Quantity,
			Customizations: cloneStringSlice(item.Customizations),
		})
	}
	return docs
}

func toDomainOrderItems(docs []orderItemDocument) []domain.OrderItem {
	if len(docs) == 0 {
		return nil
	}
	items := make([]domain.OrderItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.OrderItem{
			MenuItemID:     doc.MenuItemID,
			Name:           doc.Name,
			UnitPrice:      doc.UnitPrice,
			Image:          doc.Image,
			Quantity:       doc.Quantity,
			Customizations: cloneStringSlice(doc.Customizations),
		})
	}
	return items
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(statuses))
	seen := make(map[string]struct{})
	for _, status := range statuses {
		trimmed := strings.ToLower(strings.TrimSpace(string(status)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
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

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
