package engine

import (
	"errors"
	"strings"

	"github.com/temirov/schemahop/internal/execshell"
)

const (
	// AppPlaceholder is replaced with the application label in migrate arguments.
	AppPlaceholder = "{{app}}"
	// TargetPlaceholder is replaced with the target migration name in migrate arguments.
	TargetPlaceholder = "{{target}}"
)

// ErrEmptyCommandTemplate indicates that an engine command has no executable.
var ErrEmptyCommandTemplate = errors.New("engine command template is empty")

// renderCommand substitutes placeholders and splits the executable from its arguments.
func renderCommand(template []string, appLabel string, targetName string) (execshell.CommandName, []string, error) {
	if len(template) == 0 {
		return "", nil, ErrEmptyCommandTemplate
	}
	replacer := strings.NewReplacer(AppPlaceholder, appLabel, TargetPlaceholder, targetName)
	rendered := make([]string, 0, len(template))
	for _, argument := range template {
		rendered = append(rendered, replacer.Replace(argument))
	}
	return execshell.CommandName(rendered[0]), rendered[1:], nil
}
