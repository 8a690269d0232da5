package model

// Attention is the result of evaluating a pull against the viewer's attention set.
type Attention struct {
	Set    bool   `json:"set"`
	Reason string `json:"reason,omitempty"`
}
