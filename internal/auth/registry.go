package auth

import (
	"fmt"
	"sort"

	"github.com/cyplat/gandalf/internal/domain"
)

// Registry maps methods to strategies. It is built once at startup and
// never mutated, so concurrent lookups need no locking.
type Registry struct {
	strategies map[Method]Strategy
}

func NewRegistry(strategies map[Method]Strategy) *Registry {
	m := make(map[Method]Strategy, len(strategies))
	for k, v := range strategies {
		if v != nil {
			m[k] = v
		}
	}
	return &Registry{strategies: m}
}

func (r *Registry) Strategy(m Method) (Strategy, error) {
	s, ok := r.strategies[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMethodNotSupported, m)
	}
	return s, nil
}

func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.strategies))
	for k := range r.strategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
