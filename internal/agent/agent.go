// Package agent defines persona agents and the runner boundary that
// executes them against a model backend.
package agent

import (
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// Agent is a persona bound to model settings. Agents are immutable
// once built; concurrent chats share one agent safely.
type Agent struct {
	Name              string
	Model             string
	SystemInstruction string
	Temperature       float64
	Timeout           time.Duration
	APIKey            string
}

// Defaults are the model settings every agent inherits unless its
// persona overrides them.
type Defaults struct {
	Model   string
	Timeout time.Duration
	APIKey  string
}

// Factory builds agents from persona definitions. All configuration
// flows through here so no construction path mutates shared client
// state.
type Factory struct {
	defaults Defaults
}

// NewFactory creates an agent factory with the given defaults.
func NewFactory(defaults Defaults) *Factory {
	if defaults.Timeout <= 0 {
		defaults.Timeout = 60 * time.Second
	}
	return &Factory{defaults: defaults}
}

// New builds an agent for the persona, applying factory defaults for
// anything the persona does not set.
func (f *Factory) New(p *models.Personality) *Agent {
	return &Agent{
		Name:              p.Name,
		Model:             f.defaults.Model,
		SystemInstruction: p.SystemInstruction,
		Temperature:       p.Temperature,
		Timeout:           f.defaults.Timeout,
		APIKey:            f.defaults.APIKey,
	}
}
