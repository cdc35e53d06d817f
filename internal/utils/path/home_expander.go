package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeConstant              = "~"
	homeVariableConstant       = "$HOME"
	bracedHomeVariableConstant = "${HOME}"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander rewrites a leading "~", "$HOME" or "${HOME}" to the user's home directory.
// Paths such as "~alice/x" are returned unchanged.
type HomeExpander struct {
	provider      HomeDirectoryProvider
	resolveOnce   sync.Once
	homeDirectory string
}

// NewHomeExpander constructs a HomeExpander using os.UserHomeDir.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(nil)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom lookup; nil falls back to
// os.UserHomeDir. The lookup runs at most once.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{provider: provider}
}

// Expand returns candidatePath with its home prefix resolved. When the home directory cannot be
// determined the path is returned as given.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil {
		return candidatePath
	}

	remainder, hasHomePrefix := trimHomePrefix(candidatePath)
	if !hasHomePrefix {
		return candidatePath
	}

	homeDirectory := expander.home()
	if len(homeDirectory) == 0 {
		return candidatePath
	}
	if len(remainder) == 0 {
		return homeDirectory
	}
	return filepath.Join(homeDirectory, remainder)
}

func (expander *HomeExpander) home() string {
	expander.resolveOnce.Do(func() {
		homeDirectory, lookupError := expander.provider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}

// trimHomePrefix strips a recognised home prefix and the separator that follows it.
func trimHomePrefix(candidatePath string) (string, bool) {
	for _, prefix := range []string{bracedHomeVariableConstant, homeVariableConstant, tildeConstant} {
		if !strings.HasPrefix(candidatePath, prefix) {
			continue
		}
		remainder := candidatePath[len(prefix):]
		if len(remainder) == 0 {
			return "", true
		}
		if remainder[0] != '/' && remainder[0] != os.PathSeparator {
			return "", false
		}
		return strings.TrimLeft(remainder, "/"+string(os.PathSeparator)), true
	}
	return "", false
}
