package models

// PerspectivesSchemaVersion is the current perspectives document schema.
const PerspectivesSchemaVersion = "1"

// PromptContract bounds what a perspective's research output may contain.
type PromptContract struct {
	// MaxWords caps the markdown body length.
	MaxWords int `json:"max_words" yaml:"max_words"`
	// MaxSources caps the number of Sources bullets.
	MaxSources int `json:"max_sources" yaml:"max_sources"`
	// RequiredSections lists H2 headings that must be present.
	RequiredSections []string `json:"required_sections" yaml:"required_sections"`
}

// Perspective is one planned research angle. Read-only once written.
type Perspective struct {
	// ID is the stable perspective identifier, used in filenames.
	ID string `json:"id" yaml:"id"`
	// Track groups perspectives into research tracks.
	Track string `json:"track" yaml:"track"`
	// AgentType names the external worker profile expected to produce it.
	AgentType string `json:"agent_type" yaml:"agent_type"`
	// Focus is the one-line research question.
	Focus string `json:"focus" yaml:"focus"`
	// Contract is the output contract enforced by the validator.
	Contract PromptContract `json:"contract" yaml:"contract"`
}

// PerspectivesDoc is the persisted perspectives document.
type PerspectivesDoc struct {
	SchemaVersion string        `json:"schema_version"`
	RunID         string        `json:"run_id"`
	Perspectives  []Perspective `json:"perspectives"`
	Revision      int           `json:"revision"`
}

// Find returns the perspective with the given id, or nil.
func (d *PerspectivesDoc) Find(id string) *Perspective {
	for i := range d.Perspectives {
		if d.Perspectives[i].ID == id {
			return &d.Perspectives[i]
		}
	}
	return nil
}
