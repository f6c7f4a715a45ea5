package gate

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/ppiankov/factgate/internal/model"
)

// PolicySource provides the current promotion policy
type PolicySource interface {
	Policy() (*model.PromotionPolicy, error)
	Invalidate()
}

// PolicyLoader reads and validates a promotion policy
type PolicyLoader func() (*model.PromotionPolicy, error)

const policyKey = "promotion-policy"

// PolicyStore caches a loaded policy until it is invalidated. The cached
// value is always replaced as a whole.
type PolicyStore struct {
	load  PolicyLoader
	cache *cache.Cache
	mu    sync.Mutex // serialises loads
}

// NewPolicyStore creates a store that loads lazily through load
func NewPolicyStore(load PolicyLoader) *PolicyStore {
	return &PolicyStore{
		load:  load,
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Policy returns the cached policy, loading it on first use
func (s *PolicyStore) Policy() (*model.PromotionPolicy, error) {
	if p, ok := s.cached(); ok {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.cached(); ok {
		return p, nil
	}

	p, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cache.Set(policyKey, p, cache.NoExpiration)
	return p, nil
}

// Invalidate drops the cached policy; the next Policy call reloads it
func (s *PolicyStore) Invalidate() {
	s.cache.Delete(policyKey)
}

// Reload loads the policy now. On failure the previous policy stays in place.
func (s *PolicyStore) Reload() (*model.PromotionPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cache.Set(policyKey, p, cache.NoExpiration)
	return p, nil
}

func (s *PolicyStore) cached() (*model.PromotionPolicy, bool) {
	v, ok := s.cache.Get(policyKey)
	if !ok {
		return nil, false
	}
	return v.(*model.PromotionPolicy), true
}
