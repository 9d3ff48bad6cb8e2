// Package dto holds the decoded shape of flow definition files.
package dto

// FlowMetadata represents one flow document.
// It uses "mapstructure" tags to match the YAML keys.
type FlowMetadata struct {
	ID          string          `json:"id" mapstructure:"id"`
	Description string          `json:"description" mapstructure:"description"`
	Initial     string          `json:"initial" mapstructure:"initial"`
	States      []StateMetadata `json:"states" mapstructure:"states"`
}

// StateMetadata represents one state and its outgoing transitions.
type StateMetadata struct {
	ID          string             `json:"id" mapstructure:"id"`
	Final       bool               `json:"final" mapstructure:"final"`
	Transitions []LoaderTransition `json:"transitions" mapstructure:"transitions"`
}

// LoaderTransition accepts both the short ("to") and the long ("to_state") key.
// An empty event defaults to the target state id.
type LoaderTransition struct {
	On     string `json:"on" mapstructure:"on"`
	To     string `json:"to" mapstructure:"to"`
	ToFull string `json:"to_state" mapstructure:"to_state"`
}

// Target returns the destination state.
func (t LoaderTransition) Target() string {
	if t.To != "" {
		return t.To
	}
	return t.ToFull
}

// Event returns the triggering event.
func (t LoaderTransition) Event() string {
	if t.On != "" {
		return t.On
	}
	return t.Target()
}
