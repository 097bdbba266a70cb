package types

// CapabilitySchema describes a named operation exposed by the agent.
type CapabilitySchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  *JSONSchema `json:"parameters"`
}

// CapabilityResult is the outcome of a capability run.
type CapabilityResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}
