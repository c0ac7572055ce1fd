package pathutils

import (
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

const homeShortcutConstant = "~"

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander resolves hook destinations written relative to the home directory.
type HomeExpander struct {
	lookupHome HomeDirectoryProvider
}

// NewHomeExpander uses go-homedir, which honors $HOME before platform lookups.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(homedir.Dir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom lookup.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = homedir.Dir
	}
	return &HomeExpander{lookupHome: provider}
}

// Expand rewrites "~" and "~/..." against the home directory. Anything else,
// including "~alice/..." and paths whose home lookup fails, is returned as is.
func (expander *HomeExpander) Expand(candidatePath string) string {
	remainder, homeRelative := homeRelativeRemainder(candidatePath)
	if expander == nil || !homeRelative {
		return candidatePath
	}

	homeDirectory, lookupError := expander.lookupHome()
	if lookupError != nil || len(homeDirectory) == 0 {
		return candidatePath
	}
	return filepath.Join(homeDirectory, remainder)
}

func homeRelativeRemainder(candidatePath string) (string, bool) {
	if !strings.HasPrefix(candidatePath, homeShortcutConstant) {
		return "", false
	}
	remainder := strings.TrimPrefix(candidatePath, homeShortcutConstant)
	if len(remainder) == 0 {
		return "", true
	}
	if remainder[0] != '/' && remainder[0] != filepath.Separator {
		return "", false
	}
	return remainder[1:], true
}
