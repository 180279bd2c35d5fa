package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "cart not found")
)

// Repository stores whole carts; Save replaces the line list.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Cart, error)
	GetByOwner(ctx context.Context, owner Owner) (Cart, error)
	Save(ctx context.Context, c Cart) (Cart, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// InMemoryRepository is used for tests and local scenarios. Deletes made
// inside a storage.MemoryTransactor scope are undone if the scope fails.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]Cart
}

func NewInMemoryRepository(seed ...Cart) *InMemoryRepository {
	r := &InMemoryRepository{carts: make(map[uuid.UUID]Cart, len(seed))}
	for _, c := range seed {
		r.carts[c.ID] = cloneCart(c)
	}
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *InMemoryRepository) GetByOwner(_ context.Context, owner Owner) (Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.carts {
		if c.OwnedBy(owner) {
			return cloneCart(c), nil
		}
	}
	return Cart{}, ErrNotFound
}

func (r *InMemoryRepository) Save(ctx context.Context, c Cart) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.carts[c.ID]
	r.carts[c.ID] = cloneCart(c)
	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.carts[c.ID] = prev
		} else {
			delete(r.carts, c.ID)
		}
	})
	return cloneCart(c), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.carts, id)
	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.carts[id] = c
	})
	return nil
}

func (r *InMemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.carts {
		if c.Expired(now) {
			delete(r.carts, id)
			n++
		}
	}
	return n, nil
}

func cloneCart(c Cart) Cart {
	c.Items = append(make([]Item, 0, len(c.Items)), c.Items...)
	return c
}
