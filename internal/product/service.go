package product

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Service struct {
	repo Repository
	log  logrus.FieldLogger
}

func NewService(repo Repository, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new product. Initial variant stock is taken from the
// request; after that stock only moves through the inventory ledger.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.ID = 0
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.log.WithFields(logrus.Fields{"product_id": created.ID, "variants": len(created.Variants)}).Info("product created")
	return created, nil
}

// Update replaces catalog fields and the variant list. Inventory values in p
// are ignored.
func (s *Service) Update(ctx context.Context, id int, p Product) (Product, error) {
	p.Inventory = 0
	for i := range p.Variants {
		p.Variants[i].Inventory = 0
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return s.repo.Update(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// Seed creates every product in order and stops at the first failure.
func (s *Service) Seed(ctx context.Context, products []Product) (int, error) {
	for i, p := range products {
		if _, err := s.Create(ctx, p); err != nil {
			return i, err
		}
	}
	return len(products), nil
}
