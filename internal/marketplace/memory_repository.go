package marketplace

import (
	"context"
	"sort"
	"sync"

	"github.com/carboncred/carboncred/internal/ledger"
)

type memoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	listings map[int64]Listing
}

// NewMemoryRepository constructs an in-memory listing store for tests and dev
// mode. Ids are monotonic starting at 1.
func NewMemoryRepository() Repository {
	return &memoryRepository{listings: make(map[int64]Listing)}
}

func (r *memoryRepository) Create(_ context.Context, listing Listing) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	listing.ID = r.nextID
	r.listings[listing.ID] = listing
	return listing.ID, nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.listings[id]
	if !ok {
		return Listing{}, ErrUnknownListing
	}
	return listing, nil
}

func (r *memoryRepository) Update(_ context.Context, listing Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.listings[listing.ID]; !exists {
		return ErrUnknownListing
	}
	r.listings[listing.ID] = listing
	return nil
}

func (r *memoryRepository) UpdateTx(ctx context.Context, _ ledger.Querier, listing Listing) error {
	return r.Update(ctx, listing)
}

func (r *memoryRepository) ListActive(_ context.Context) ([]Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var listings []Listing
	for _, listing := range r.listings {
		if listing.Active {
			listings = append(listings, listing)
		}
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}
