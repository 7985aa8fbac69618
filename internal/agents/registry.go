package agents

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
)

// Deps are the shared dependencies handed to agent constructors.
type Deps struct {
	LLM    LLMClient
	Logger zerolog.Logger
}

// Constructor builds an agent from a prepared spec.
type Constructor func(spec Spec, deps Deps) (Agent, error)

// Registry maps agent types to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry that knows the rule_based and llm types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeRuleBased, func(spec Spec, deps Deps) (Agent, error) {
		return NewRuleBasedAgent(spec, deps.Logger), nil
	})
	r.Register(TypeLLM, func(spec Spec, deps Deps) (Agent, error) {
		return NewLLMAgent(spec, deps.LLM, deps.Logger)
	})
	return r
}

// Register adds or replaces the constructor for an agent type.
func (r *Registry) Register(agentType string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[agentType] = c
}

// Types returns the registered agent types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build prepares spec and constructs the agent for its type.
func (r *Registry) Build(spec Spec, deps Deps) (Agent, error) {
	if err := spec.Prepare(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.constructors[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.NewAgentError(spec.Name, "build",
			fmt.Errorf("%w: %q (supported: %s)", apperr.ErrUnsupportedAgentType, spec.Type, strings.Join(r.Types(), ", ")))
	}
	return c(spec, deps)
}
