package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const userCollection = "users"

type userDocument struct {
	DisplayName string    `firestore:"displayName,omitempty"`
	Email       string    `firestore:"email,omitempty"`
	PhoneNumber string    `firestore:"phoneNumber,omitempty"`
	Roles       []string  `firestore:"roles,omitempty"`
	IsActive    bool      `firestore:"isActive"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d userDocument) toDomain(id string) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		PhoneNumber: d.PhoneNumber,
		Roles:       append([]string(nil), d.Roles...),
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// UserRepository persists user profiles in Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil),
	}, nil
}

// GetByID fetches a user profile by UID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.UserProfile, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Upsert creates or replaces the profile document.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return domain.UserProfile{}, errors.New("user repository: id is required")
	}
	doc := userDocument{
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Email:       strings.TrimSpace(profile.Email),
		PhoneNumber: strings.TrimSpace(profile.PhoneNumber),
		Roles:       append([]string(nil), profile.Roles...),
		IsActive:    profile.IsActive,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   profile.UpdatedAt,
	}
	if _, err := r.base.Set(ctx, id, doc); err != nil {
		return domain.UserProfile{}, err
	}
	profile.ID = id
	return profile, nil
}

var _ repositories.UserRepository = (*UserRepository)(nil)
