package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/repositories"
)

var (
	// ErrUserNotFound indicates no profile exists for the user id.
	ErrUserNotFound = errors.New("user service: user not found")
	// ErrAddressNotFound indicates the address does not exist or belongs to
	// another user.
	ErrAddressNotFound = errors.New("user service: address not found")
	// ErrUserInvalidInput signals malformed profile or address input.
	ErrUserInvalidInput = errors.New("user service: invalid input")
)

// UserServiceDeps bundles dependencies required to construct a UserService.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type userService struct {
	users     repositories.UserRepository
	addresses repositories.AddressRepository
	clock     func() time.Time
	idGen     func() string
}

// NewUserService wires a UserService backed by the user and address
// repositories.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &userService{
		users:     deps.Users,
		addresses: deps.Addresses,
		clock:     func() time.Time { return clock().UTC() },
		idGen:     idGen,
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return UserProfile{}, ErrUserNotFound
	}
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return UserProfile{}, ErrUserNotFound
		}
		return UserProfile{}, err
	}
	return profile, nil
}

// EnsureProfile creates or refreshes the datastore projection of an
// identity-provider user. It is called on first authenticated request.
func (s *userService) EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (UserProfile, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	now := s.clock()
	profile, err := s.users.GetByID(ctx, cmd.UserID)
	switch {
	case err == nil:
		if cmd.Email != "" {
			profile.Email = cmd.Email
		}
		if cmd.DisplayName != "" {
			profile.DisplayName = cmd.DisplayName
		}
		if cmd.Phone != "" {
			profile.PhoneNumber = cmd.Phone
		}
		if len(cmd.Roles) > 0 {
			profile.Roles = cmd.Roles
		}
	case repositories.IsNotFound(err):
		roles := cmd.Roles
		if len(roles) == 0 {
			roles = []string{"user"}
		}
		profile = UserProfile{
			ID:          cmd.UserID,
			Email:       cmd.Email,
			DisplayName: cmd.DisplayName,
			PhoneNumber: cmd.Phone,
			Roles:       roles,
			IsActive:    true,
			CreatedAt:   now,
		}
	default:
		return UserProfile{}, err
	}
	profile.UpdatedAt = now
	return s.users.Upsert(ctx, profile)
}

func (s *userService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	return s.addresses.List(ctx, userID)
}

func (s *userService) GetAddress(ctx context.Context, userID, addressID string) (Address, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(addressID) == "" {
		return Address{}, ErrAddressNotFound
	}
	address, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Address{}, ErrAddressNotFound
		}
		return Address{}, err
	}
	return address, nil
}

func (s *userService) UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error) {
	address := cmd.Address
	address.UserID = strings.TrimSpace(cmd.UserID)
	if address.UserID == "" {
		return Address{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if strings.TrimSpace(address.Line1) == "" || strings.TrimSpace(address.City) == "" {
		return Address{}, fmt.Errorf("%w: address line and city are required", ErrUserInvalidInput)
	}
	if address.DeliveryFeeOverride != nil && address.DeliveryFeeOverride.IsNegative() {
		return Address{}, fmt.Errorf("%w: negative delivery fee override", ErrUserInvalidInput)
	}

	if address.ID == "" {
		address.ID = s.idGen()
	}
	address.UpdatedAt = s.clock()
	saved, err := s.addresses.Upsert(ctx, address)
	if err != nil {
		return Address{}, err
	}
	return saved, nil
}

func (s *userService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(addressID) == "" {
		return ErrAddressNotFound
	}
	if err := s.addresses.Delete(ctx, userID, addressID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrAddressNotFound
		}
		return err
	}
	return nil
}

func (s *userService) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(addressID) == "" {
		return ErrAddressNotFound
	}
	if err := s.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrAddressNotFound
		}
		return err
	}
	return nil
}

// DeliveryFeeForAddress backs the pricing engine's optional fee-tier lookup.
// A missing address or one without an override reports no override rather
// than an error, so pricing falls back to the restaurant's flat fee.
func (s *userService) DeliveryFeeForAddress(ctx context.Context, userID, addressID string) (decimal.Decimal, bool, error) {
	address, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	if address.DeliveryFeeOverride == nil {
		return decimal.Zero, false, nil
	}
	return *address.DeliveryFeeOverride, true, nil
}
