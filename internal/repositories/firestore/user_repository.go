package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/foodbuddy/api/internal/domain"
	pfirestore "github.com/foodbuddy/api/internal/platform/firestore"
	repositories "github.com/foodbuddy/api/internal/repositories"
)

const usersCollection = "users"

// UserRepository reads account records from Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByID loads the account record by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, errors.New("user repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// ListIDsByRole returns the IDs of every account holding the role, sorted for
// deterministic fan-out.
func (r *UserRepository) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}
	roleValue := strings.ToLower(strings.TrimSpace(string(role)))
	if roleValue == "" {
		return nil, errors.New("user repository: role is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("role", "==", roleValue)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

type userDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Phone     string    `firestore:"phone,omitempty"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toDomainUser(id string, doc userDocument, createTime, updateTime time.Time) domain.User {
	user := domain.User{
		ID:        id,
		Name:      strings.TrimSpace(doc.Name),
		Email:     strings.ToLower(strings.TrimSpace(doc.Email)),
		Phone:     strings.TrimSpace(doc.Phone),
		Role:      domain.Role(strings.ToLower(strings.TrimSpace(doc.Role))),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = createTime
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = updateTime
	}
	return user
}

var _ repositories.UserRepository = (*UserRepository)(nil)
