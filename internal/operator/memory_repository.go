package operator

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu        sync.RWMutex
	operators map[string]Operator // keyed by email
}

// NewMemoryRepository builds an in-memory operator store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{operators: make(map[string]Operator)}
}

func (r *memoryRepository) Create(_ context.Context, op Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operators[op.Email]; exists {
		return ErrDuplicateOperator
	}
	r.operators[op.Email] = op
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[email]
	if !ok {
		return Operator{}, ErrUnknownOperator
	}
	return op, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, op := range r.operators {
		if op.ID == id {
			return op, nil
		}
	}
	return Operator{}, ErrUnknownOperator
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, op := range r.operators {
		if op.ID == id {
			op.TokenVersion = version
			r.operators[email] = op
			return nil
		}
	}
	return ErrUnknownOperator
}
