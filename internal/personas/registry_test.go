package personas

import (
	"sync"
	"testing"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/pkg/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	personalities := map[string]*models.Personality{
		"Rick": {Name: "Rick", SystemInstruction: "You are Rick.", Temperature: 1.0},
		"Yoda": {Name: "Yoda", SystemInstruction: "You are Yoda.", Temperature: 0.7},
	}
	registry, err := NewRegistry(personalities, agent.NewFactory(agent.Defaults{Model: "test-model"}), "Rick", nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestNewRegistryRequiresDefault(t *testing.T) {
	personalities := map[string]*models.Personality{
		"Yoda": {Name: "Yoda"},
	}
	if _, err := NewRegistry(personalities, agent.NewFactory(agent.Defaults{}), "Rick", nil); err == nil {
		t.Fatal("expected error when default personality is missing")
	}
}

func TestAgentCachedPerPersona(t *testing.T) {
	registry := testRegistry(t)

	first := registry.Agent("Yoda")
	second := registry.Agent("Yoda")
	if first != second {
		t.Error("expected the same agent instance on repeat lookups")
	}
	if first.Name != "Yoda" || first.Model != "test-model" {
		t.Errorf("unexpected agent: %+v", first)
	}
}

func TestAgentUnknownFallsBackToDefault(t *testing.T) {
	registry := testRegistry(t)

	a := registry.Agent("Nobody")
	if a.Name != "Rick" {
		t.Errorf("agent name = %q, want default Rick", a.Name)
	}
	if a != registry.Agent("Rick") {
		t.Error("fallback must share the default persona's cached agent")
	}
}

func TestAgentConcurrentConstructionConverges(t *testing.T) {
	registry := testRegistry(t)

	const callers = 32
	agents := make([]*agent.Agent, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agents[i] = registry.Agent("Rick")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if agents[i] != agents[0] {
			t.Fatalf("caller %d got a different agent instance", i)
		}
	}
}

func TestPersonalityLookup(t *testing.T) {
	registry := testRegistry(t)

	if p := registry.Personality("Yoda"); p.Name != "Yoda" {
		t.Errorf("Personality(Yoda) = %+v", p)
	}
	if p := registry.Personality("Nobody"); p.Name != "Rick" {
		t.Errorf("Personality(Nobody) = %+v, want default", p)
	}
}
