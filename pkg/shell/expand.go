package shell

import (
	"path/filepath"
	"strings"
)

// ExpandTilde replaces a leading "~" or "~/" with home. "~user" forms and
// tildes anywhere else in the token are left alone.
func ExpandTilde(token, home string) string {
	if home == "" {
		return token
	}
	if token == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(token, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return token
}

func expandAll(tokens []string, home string) []string {
	expanded := make([]string, len(tokens))
	for i, token := range tokens {
		expanded[i] = ExpandTilde(token, home)
	}
	return expanded
}
