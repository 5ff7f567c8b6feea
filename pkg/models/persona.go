package models

// Personality describes a selectable chatbot persona: its menu metadata
// plus the system instruction and sampling configuration used to build
// the backing agent.
type Personality struct {
	Name           string  `json:"name" yaml:"name"`
	MenuName       string  `json:"menu_name" yaml:"menu_name"`
	Title          string  `json:"title" yaml:"title"`
	Overview       string  `json:"overview" yaml:"overview"`
	Welcome        string  `json:"welcome" yaml:"welcome"`
	PromptQuestion string  `json:"prompt_question" yaml:"prompt_question"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
	Avatar         string  `json:"avatar" yaml:"avatar"`

	// KnowledgeBase optionally names a knowledge-base connector the
	// persona's agent should search before falling back to the web.
	KnowledgeBase     string `json:"knowledge_base,omitempty" yaml:"knowledge_base"`
	KnowledgeBaseDesc string `json:"knowledge_base_description,omitempty" yaml:"knowledge_base_description"`

	// SystemInstruction is resolved from the prompts directory at load
	// time, not declared inline in the personas file.
	SystemInstruction string `json:"-" yaml:"-"`
}

// PersonaSummary is the public listing shape returned by GET /personas.
type PersonaSummary struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Avatar         string `json:"avatar"`
	Title          string `json:"title"`
	Overview       string `json:"overview"`
	Welcome        string `json:"welcome"`
	PromptQuestion string `json:"prompt_question"`
}

// Summary returns the listing shape for the personality.
func (p *Personality) Summary() PersonaSummary {
	return PersonaSummary{
		Name:           p.Name,
		Description:    p.Overview,
		Avatar:         p.Avatar,
		Title:          p.Title,
		Overview:       p.Overview,
		Welcome:        p.Welcome,
		PromptQuestion: p.PromptQuestion,
	}
}
