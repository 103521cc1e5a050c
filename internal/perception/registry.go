package perception

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// NegationPrefix inverts the named condition: "not:light-on".
const NegationPrefix = "not:"

var ErrUnknownCondition = errors.New("unknown condition")

// #region registry

// Registry maps condition names used in monitor specs to predicates.
type Registry struct {
	mu    sync.RWMutex
	conds map[string]core.Condition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conds: make(map[string]core.Condition)}
}

// Register adds or replaces a named predicate.
func (r *Registry) Register(name string, c core.Condition) error {
	if name == "" || strings.HasPrefix(name, NegationPrefix) {
		return fmt.Errorf("register %q: reserved or empty name", name)
	}
	if c == nil {
		return fmt.Errorf("register %q: nil condition", name)
	}
	r.mu.Lock()
	r.conds[name] = c
	r.mu.Unlock()
	return nil
}

// Resolve looks a name up, applying any number of "not:" prefixes.
func (r *Registry) Resolve(name string) (core.Condition, error) {
	if rest, ok := strings.CutPrefix(name, NegationPrefix); ok {
		inner, err := r.Resolve(rest)
		if err != nil {
			return nil, err
		}
		return func(obs core.Observation, a core.Action) bool { return !inner(obs, a) }, nil
	}

	r.mu.RLock()
	c, ok := r.conds[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCondition, name)
	}
	return c, nil
}

// Names lists registered conditions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conds))
	for n := range r.conds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// #endregion registry
