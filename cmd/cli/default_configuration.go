package cli

import _ "embed"

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns a copy of the built-in YAML settings.
func EmbeddedDefaultConfiguration() []byte {
	return append([]byte(nil), embeddedDefaultConfiguration...)
}
