package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/carboncred/carboncred/internal/ledger"
)

type memoryRepository struct {
	mu        sync.RWMutex
	companies map[string]Company
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{companies: make(map[string]Company)}
}

func (r *memoryRepository) Create(_ context.Context, company Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.companies[company.Name]; exists {
		return ErrDuplicateCompany
	}
	r.companies[company.Name] = company
	return nil
}

func (r *memoryRepository) GetByName(_ context.Context, name string) (Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	company, ok := r.companies[name]
	if !ok {
		return Company{}, ErrUnknownCompany
	}
	return company, nil
}

func (r *memoryRepository) Update(_ context.Context, company Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.companies[company.Name]; !exists {
		return ErrUnknownCompany
	}
	r.companies[company.Name] = company
	return nil
}

func (r *memoryRepository) UpdateTx(ctx context.Context, _ ledger.Querier, company Company) error {
	return r.Update(ctx, company)
}

func (r *memoryRepository) List(_ context.Context) ([]Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	companies := make([]Company, 0, len(r.companies))
	for _, company := range r.companies {
		companies = append(companies, company)
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].CreatedAt.Equal(companies[j].CreatedAt) {
			return companies[i].Name < companies[j].Name
		}
		return companies[i].CreatedAt.Before(companies[j].CreatedAt)
	})
	return companies, nil
}
