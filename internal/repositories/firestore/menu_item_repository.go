package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/foodbuddy/api/internal/domain"
	pfirestore "github.com/foodbuddy/api/internal/platform/firestore"
	repositories "github.com/foodbuddy/api/internal/repositories"
)

const menuItemsCollection = "menuItems"

// Firestore in clause supports up to 10 values per query.
const menuItemBatchSize = 10

// MenuItemRepository reads catalog entries from Firestore.
type MenuItemRepository struct {
	base *pfirestore.BaseRepository[menuItemDocument]
}

// NewMenuItemRepository constructs a Firestore-backed menu item repository.
func NewMenuItemRepository(provider *pfirestore.Provider) (*MenuItemRepository, error) {
	if provider == nil {
		return nil, errors.New("menu item repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[menuItemDocument](provider, menuItemsCollection, nil, nil)
	return &MenuItemRepository{base: base}, nil
}

// FindByID loads a single catalog entry.
func (r *MenuItemRepository) FindByID(ctx context.Context, menuItemID string) (domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return domain.MenuItem{}, errors.New("menu item repository not initialised")
	}
	menuItemID = strings.TrimSpace(menuItemID)
	if menuItemID == "" {
		return domain.MenuItem{}, errors.New("menu item repository: menu item id is required")
	}

	doc, err := r.base.Get(ctx, menuItemID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return toDomainMenuItem(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByIDs resolves the given IDs in batches. Unknown IDs are simply absent
// from the result; callers decide whether that is an error.
func (r *MenuItemRepository) FindByIDs(ctx context.Context, menuItemIDs []string) (map[string]domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("menu item repository not initialised")
	}

	ids := dedupeIDs(menuItemIDs)
	result := make(map[string]domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	for start := 0; start < len(ids); start += menuItemBatchSize {
		end := start + menuItemBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where(firestore.DocumentID, "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			result[doc.ID] = toDomainMenuItem(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		}
	}
	return result, nil
}

type menuItemDocument struct {
	RestaurantID string    `firestore:"restaurantId"`
	Name         string    `firestore:"name"`
	Description  string    `firestore:"description,omitempty"`
	Price        int64     `firestore:"price"`
	Image        string    `firestore:"image,omitempty"`
	Category     string    `firestore:"category,omitempty"`
	Available    bool      `firestore:"available"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func toDomainMenuItem(id string, doc menuItemDocument, createTime, updateTime time.Time) domain.MenuItem {
	item := domain.MenuItem{
		ID:           id,
		RestaurantID: strings.TrimSpace(doc.RestaurantID),
		Name:         strings.TrimSpace(doc.Name),
		Description:  doc.Description,
		Price:        doc.Price,
		Image:        strings.TrimSpace(doc.Image),
		Category:     strings.TrimSpace(doc.Category),
		Available:    doc.Available,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = createTime
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = updateTime
	}
	return item
}

func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

var _ repositories.MenuItemRepository = (*MenuItemRepository)(nil)
