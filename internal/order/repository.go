package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "order not found")
	// ErrDuplicateNumber means the generated order number is taken.
	ErrDuplicateNumber = errors.New("order number already exists")
)

// Repository persists orders. Items are written once by Create; Update only
// touches status, payment and shipping fields.
type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id int) (Order, error)
	// GetForUpdate locks the order row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int) (Order, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]Order, int, error)
	Update(ctx context.Context, o Order) (Order, error)
	// MarkInventoryRestored sets the restore marker unless it is already set
	// and reports whether it did.
	MarkInventoryRestored(ctx context.Context, id int, at time.Time) (bool, error)
}

// InMemoryRepository is used for tests and local scenarios. Writes made
// inside a storage.MemoryTransactor scope are undone if the scope fails.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[int]Order
	nextID int
}

func NewInMemoryRepository(seed ...Order) *InMemoryRepository {
	r := &InMemoryRepository{orders: make(map[int]Order, len(seed)), nextID: 1}
	for _, o := range seed {
		r.orders[o.ID] = cloneOrder(o)
		if o.ID >= r.nextID {
			r.nextID = o.ID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.Number == o.Number {
			return Order{}, ErrDuplicateNumber
		}
	}
	o.ID = r.nextID
	r.nextID++
	r.orders[o.ID] = cloneOrder(o)
	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.orders, o.ID)
	})
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

// GetForUpdate relies on the memory transactor serializing scopes.
func (r *InMemoryRepository) GetForUpdate(ctx context.Context, id int) (Order, error) {
	return r.GetByID(ctx, id)
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID, limit, offset int) ([]Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]Order, 0, end-offset)
	for _, o := range all[offset:end] {
		out = append(out, cloneOrder(o))
	}
	return out, total, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.orders[o.ID]
	if !ok {
		return Order{}, ErrNotFound
	}
	next := cloneOrder(o)
	next.Items = prev.Items
	next.InventoryRestoredAt = prev.InventoryRestoredAt
	r.orders[o.ID] = next
	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.orders[o.ID] = prev
	})
	return cloneOrder(next), nil
}

func (r *InMemoryRepository) MarkInventoryRestored(ctx context.Context, id int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.InventoryRestoredAt != nil {
		return false, nil
	}
	o.InventoryRestoredAt = &at
	r.orders[id] = o
	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		o.InventoryRestoredAt = nil
		r.orders[id] = o
	})
	return true, nil
}

func cloneOrder(o Order) Order {
	o.Items = append(make([]Item, 0, len(o.Items)), o.Items...)
	if o.PaymentDetails != nil {
		d := make(PaymentDetails, len(o.PaymentDetails))
		for k, v := range o.PaymentDetails {
			d[k] = v
		}
		o.PaymentDetails = d
	}
	return o
}
