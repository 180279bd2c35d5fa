package address

import (
	"context"

	"github.com/wichananm65/storefront/internal/apperr"
)

// Service orchestrates address retrieval.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetAddresses(ctx context.Context, userID int) ([]Address, error) {
	if userID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.List(ctx, userID)
}

// GetAddress returns one of the user's addresses; another user's address is
// reported as not found.
func (s *Service) GetAddress(ctx context.Context, userID, addressID int) (Address, error) {
	if userID <= 0 || addressID <= 0 {
		return Address{}, ErrNotFound
	}
	return s.repo.Get(ctx, userID, addressID)
}

func (s *Service) AddAddress(ctx context.Context, userID int, in Input) (Address, error) {
	if userID <= 0 {
		return Address{}, ErrNotFound
	}
	in = in.trimmed()
	if err := validate(in); err != nil {
		return Address{}, err
	}
	return s.repo.Add(ctx, userID, in)
}

func (s *Service) UpdateAddress(ctx context.Context, userID, addressID int, in Input) (Address, error) {
	if userID <= 0 || addressID <= 0 {
		return Address{}, ErrNotFound
	}
	in = in.trimmed()
	if err := validate(in); err != nil {
		return Address{}, err
	}
	return s.repo.Update(ctx, userID, addressID, in)
}

func (s *Service) DeleteAddress(ctx context.Context, userID, addressID int) error {
	if userID <= 0 || addressID <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, userID, addressID)
}

func validate(in Input) error {
	if in.AddressDesc == "" && in.AddressName == "" {
		return apperr.Invalidf("addressDesc or addressName required")
	}
	return nil
}
