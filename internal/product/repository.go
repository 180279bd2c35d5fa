package product

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/storefront/internal/apperr"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "product not found")
)

// Repository is the catalog store. Update and Create never touch stock
// counters of existing variants; inventory moves only through the ledger.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	// ListByIDs returns the products that exist among ids, in one round trip.
	ListByIDs(ctx context.Context, ids []int) ([]Product, error)
	GetByID(ctx context.Context, id int) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int, p Product) (Product, error)
	Delete(ctx context.Context, id int) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// local runs without Postgres.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[int]Product
	nextID  int
	now     func() time.Time
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make(map[int]Product, len(seed)),
		nextID:  1,
		now:     time.Now,
	}

	maxID := 0
	for _, p := range seed {
		p.Normalize()
		r.storage[p.ID] = clone(p)
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	r.nextID = maxID + 1
	return r
}

func (r *InMemoryRepository) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.storage))
	for _, p := range r.storage {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) ListByIDs(_ context.Context, ids []int) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.storage[id]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return clone(p), nil
}

func (r *InMemoryRepository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.storage[p.ID] = clone(p)
	return clone(p), nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.storage[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p = carryStock(stored, p)
	p.ID = id
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = r.now()
	r.storage[id] = clone(p)
	return clone(p), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[id]; !ok {
		return ErrNotFound
	}
	delete(r.storage, id)
	return nil
}

// Mutate applies fn to the stored product under the write lock. When fn
// fails nothing is written. It is the in-memory counterpart of a conditional
// UPDATE and is meant for the inventory ledger only.
func (r *InMemoryRepository) Mutate(id int, fn func(p *Product) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	p := clone(stored)
	if err := fn(&p); err != nil {
		return err
	}
	p.RecomputeInventory()
	p.UpdatedAt = r.now()
	r.storage[id] = p
	return nil
}

func clone(p Product) Product {
	p.Images = append(make([]string, 0, len(p.Images)), p.Images...)
	p.Variants = append(make([]Variant, 0, len(p.Variants)), p.Variants...)
	return p
}
