package address

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/storefront/internal/apperr"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "address not found")
)

type Repository interface {
	List(ctx context.Context, userID int) ([]Address, error)
	Get(ctx context.Context, userID, addressID int) (Address, error)
	Add(ctx context.Context, userID int, in Input) (Address, error)
	Update(ctx context.Context, userID, addressID int, in Input) (Address, error)
	Delete(ctx context.Context, userID, addressID int) error
}

// InMemoryRepository for tests
type InMemoryRepository struct {
	mu     sync.RWMutex
	data   map[int]Address // keyed by addressID
	nextID int
}

func NewInMemoryRepository(seed ...Address) *InMemoryRepository {
	r := &InMemoryRepository{data: make(map[int]Address, len(seed)), nextID: 1}
	for _, a := range seed {
		r.data[a.AddressID] = a
		if a.AddressID >= r.nextID {
			r.nextID = a.AddressID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, userID int) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Address, 0)
	for _, a := range r.data {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddressID < out[j].AddressID })
	return out, nil
}

func (r *InMemoryRepository) Get(_ context.Context, userID, addressID int) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[addressID]
	if !ok || a.UserID != userID {
		return Address{}, ErrNotFound
	}
	return a, nil
}

func (r *InMemoryRepository) Add(_ context.Context, userID int, in Input) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a := Address{
		AddressID:   r.nextID,
		UserID:      userID,
		AddressDesc: in.AddressDesc,
		Phone:       in.Phone,
		AddressName: in.AddressName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.nextID++
	r.data[a.AddressID] = a
	return a, nil
}

func (r *InMemoryRepository) Update(_ context.Context, userID, addressID int, in Input) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[addressID]
	if !ok || a.UserID != userID {
		return Address{}, ErrNotFound
	}
	a.AddressDesc = in.AddressDesc
	a.Phone = in.Phone
	a.AddressName = in.AddressName
	a.UpdatedAt = time.Now().UTC()
	r.data[addressID] = a
	return a, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, addressID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[addressID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(r.data, addressID)
	return nil
}
