package app

import (
	"errors"

	"github.com/vk/taskbed/internal/config"
)

// Global holds the settings shared by every operation.
type Global struct {
	LogLevel        string
	LogFormat       string
	HealthcheckPort int
	EnvFile         string
}

// Invocation selects exactly one operation and carries its configuration.
type Invocation struct {
	Global      Global
	Versions    *config.Versions
	Validate    *config.Validate
	RunbookPath string
}

// NewInvocation validates that an invocation selects exactly one operation.
func NewInvocation(inv Invocation) (*Invocation, error) {
	selected := 0
	if inv.Versions != nil {
		selected++
	}
	if inv.Validate != nil {
		selected++
	}
	if inv.RunbookPath != "" {
		selected++
	}
	if selected != 1 {
		return nil, errors.New("an invocation must select exactly one operation")
	}
	return &inv, nil
}
