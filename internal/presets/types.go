package presets

import "github.com/user/cloudmux/internal/pty"

// Preset is a saved terminal session definition.
type Preset struct {
	ID    string       `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Title string       `json:"title,omitempty" yaml:"title,omitempty"`
	Shell string       `json:"shell,omitempty" yaml:"shell,omitempty"`
	Kind  pty.KindSpec `json:"kind" yaml:"kind"`
}

// Request converts the preset into a session create request.
func (p *Preset) Request() pty.CreateRequest {
	return pty.CreateRequest{SessionType: p.Kind, Title: p.Title, Shell: p.Shell}
}
