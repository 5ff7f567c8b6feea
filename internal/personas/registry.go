package personas

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/internal/infra"
	"github.com/derailed-dash/rickbot/pkg/models"
)

// Registry hands out one agent per persona, built lazily and cached
// for the life of the process. Concurrent first requests for the same
// persona converge on a single construction.
type Registry struct {
	personalities map[string]*models.Personality
	factory       *agent.Factory
	defaultName   string
	logger        *slog.Logger

	mu     sync.RWMutex
	agents map[string]*agent.Agent
	group  infra.Group[string, *agent.Agent]
}

// NewRegistry builds a registry over the loaded personalities. The
// default persona must exist; unknown persona requests fall back to it,
// so a registry without it cannot serve anything.
func NewRegistry(personalities map[string]*models.Personality, factory *agent.Factory, defaultName string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := personalities[defaultName]; !ok {
		return nil, fmt.Errorf("default personality %q not defined", defaultName)
	}
	return &Registry{
		personalities: personalities,
		factory:       factory,
		defaultName:   defaultName,
		logger:        logger.With("component", "personas"),
		agents:        map[string]*agent.Agent{},
	}, nil
}

// Personality returns the persona definition, falling back to the
// default for unknown names.
func (r *Registry) Personality(name string) *models.Personality {
	if p, ok := r.personalities[name]; ok {
		return p
	}
	r.logger.Debug("unknown personality requested", "name", name, "fallback", r.defaultName)
	return r.personalities[r.defaultName]
}

// All returns every loaded persona definition, keyed by name.
func (r *Registry) All() map[string]*models.Personality {
	return r.personalities
}

// Agent returns the cached agent for the persona, constructing it on
// first use. Unknown names resolve to the default persona's agent.
func (r *Registry) Agent(name string) *agent.Agent {
	p := r.Personality(name)

	r.mu.RLock()
	a, ok := r.agents[p.Name]
	r.mu.RUnlock()
	if ok {
		return a
	}

	a, _, _ = r.group.Do(p.Name, func() (*agent.Agent, error) {
		// A previous flight may have populated the cache already.
		r.mu.Lock()
		defer r.mu.Unlock()
		if cached, ok := r.agents[p.Name]; ok {
			return cached, nil
		}
		built := r.factory.New(p)
		r.agents[p.Name] = built
		r.logger.Info("constructed agent", "personality", p.Name, "model", built.Model)
		return built, nil
	})
	return a
}
