package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const addressCollectionPattern = "users/%s/addresses"

type addressDocument struct {
	Label               string    `firestore:"label,omitempty"`
	Recipient           string    `firestore:"recipient"`
	Line1               string    `firestore:"line1"`
	Line2               string    `firestore:"line2,omitempty"`
	City                string    `firestore:"city"`
	PostalCode          string    `firestore:"postalCode"`
	Country             string    `firestore:"country"`
	Phone               string    `firestore:"phone,omitempty"`
	DeliveryFeeOverride *string   `firestore:"deliveryFeeOverride,omitempty"`
	IsDefault           bool      `firestore:"isDefault"`
	CreatedAt           time.Time `firestore:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

func (d addressDocument) toDomain(userID, id string) (domain.Address, error) {
	override, err := decodeDecimalPtr(d.DeliveryFeeOverride)
	if err != nil {
		return domain.Address{}, fmt.Errorf("address %s: %w", id, err)
	}
	return domain.Address{
		ID:                  id,
		UserID:              userID,
		Label:               d.Label,
		Recipient:           d.Recipient,
		Line1:               d.Line1,
		Line2:               d.Line2,
		City:                d.City,
		PostalCode:          d.PostalCode,
		Country:             d.Country,
		Phone:               d.Phone,
		DeliveryFeeOverride: override,
		IsDefault:           d.IsDefault,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}, nil
}

func addressToDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Label:               strings.TrimSpace(addr.Label),
		Recipient:           strings.TrimSpace(addr.Recipient),
		Line1:               strings.TrimSpace(addr.Line1),
		Line2:               strings.TrimSpace(addr.Line2),
		City:                strings.TrimSpace(addr.City),
		PostalCode:          strings.TrimSpace(addr.PostalCode),
		Country:             strings.TrimSpace(addr.Country),
		Phone:               strings.TrimSpace(addr.Phone),
		DeliveryFeeOverride: encodeDecimalPtr(addr.DeliveryFeeOverride),
		IsDefault:           addr.IsDefault,
		CreatedAt:           addr.CreatedAt,
		UpdatedAt:           addr.UpdatedAt,
	}
}

// AddressRepository persists user addresses in per-user subcollections.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// Get fetches a single address owned by the user.
func (r *AddressRepository) Get(ctx context.Context, userID, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.get", err)
	}
	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(strings.TrimSpace(userID), snap.Ref.ID)
}

// List returns all addresses for the specified user, most recent first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("updatedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var results []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
		}
		addr, err := doc.toDomain(strings.TrimSpace(userID), snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, addr)
	}
	return results, nil
}

// Upsert creates or updates an address. Marking an address default clears
// the flag on every other address in the same transaction.
func (r *AddressRepository) Upsert(ctx context.Context, addr domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, addr.UserID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	var saved domain.Address
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)

		doc := addressToDocument(addr)
		now := time.Now().UTC()
		snapshot, err := tx.Get(docRef)
		switch status.Code(err) {
		case codes.NotFound:
			doc.CreatedAt = now
		case codes.OK:
			var existing addressDocument
			if err := snapshot.DataTo(&existing); err != nil {
				return fmt.Errorf("decode address %s: %w", snapshot.Ref.ID, err)
			}
			doc.CreatedAt = existing.CreatedAt
		default:
			return err
		}
		doc.UpdatedAt = now

		if doc.IsDefault {
			if err := r.clearDefault(tx, coll, docRef.ID); err != nil {
				return err
			}
		}

		if err := tx.Set(docRef, doc); err != nil {
			return err
		}

		saved, err = doc.toDomain(strings.TrimSpace(addr.UserID), docRef.ID)
		return err
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.upsert", err)
	}
	return saved, nil
}

// Delete removes the specified address document.
func (r *AddressRepository) Delete(ctx context.Context, userID, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// SetDefault marks the given address default and clears all others.
func (r *AddressRepository) SetDefault(ctx context.Context, userID, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("address repository: address id is required")
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		if _, err := tx.Get(docRef); err != nil {
			return err
		}
		if err := r.clearDefault(tx, coll, docRef.ID); err != nil {
			return err
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "isDefault", Value: true},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	return pfirestore.WrapError("addresses.setDefault", err)
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

func (r *AddressRepository) clearDefault(tx *firestore.Transaction, coll *firestore.CollectionRef, currentID string) error {
	query := coll.Where("isDefault", "==", true).Limit(10)
	snaps, err := tx.Documents(query).GetAll()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return err
	}
	for _, snap := range snaps {
		if snap.Ref.ID == currentID {
			continue
		}
		if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isDefault", Value: false}}); err != nil {
			return err
		}
	}
	return nil
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
