// Package dedup rewrites a WARC file, replacing response records whose payload
// is already archived by the remote index with revisit records.
package dedup

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thesavant42/warc-dedup/internal/models"
)

var (
	// ErrKeyNotRegistered means a response record seen in the rewrite pass was
	// not seen in the scan pass. The source changed between passes.
	ErrKeyNotRegistered = errors.New("dedup key not registered in scan pass")
	// ErrResultAlreadySet is returned when a key is resolved twice
	ErrResultAlreadySet = errors.New("lookup result already set")
)

// Registry holds every key found in the scan pass and its lookup result
type Registry struct {
	mu      sync.Mutex
	order   []models.DedupKey
	results map[models.DedupKey]models.LookupResult
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{results: make(map[models.DedupKey]models.LookupResult)}
}

// Register adds key; registering a key twice has no effect
func (r *Registry) Register(key models.DedupKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[key]; ok {
		return
	}
	r.results[key] = models.LookupResult{}
	r.order = append(r.order, key)
}

// Keys returns the distinct keys in first-seen order
func (r *Registry) Keys() []models.DedupKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DedupKey, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of distinct keys
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Get returns the result for key
func (r *Registry) Get(key models.DedupKey) (models.LookupResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[key]
	if !ok {
		return models.LookupResult{}, fmt.Errorf("%w: %s", ErrKeyNotRegistered, key)
	}
	return result, nil
}

// SetResult stores the lookup result for a registered key. It is safe to call
// from concurrent lookup workers; a result cannot be replaced once set.
func (r *Registry) SetResult(key models.DedupKey, result models.LookupResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.results[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotRegistered, key)
	}
	if current.Status != models.StatusUnresolved {
		return fmt.Errorf("%w: %s", ErrResultAlreadySet, key)
	}
	r.results[key] = result
	return nil
}

// Unresolved returns the keys still waiting for a result
func (r *Registry) Unresolved() []models.DedupKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DedupKey
	for _, k := range r.order {
		if r.results[k].Status == models.StatusUnresolved {
			out = append(out, k)
		}
	}
	return out
}
