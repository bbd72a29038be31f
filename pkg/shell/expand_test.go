package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTilde(t *testing.T) {
	tests := []struct {
		name  string
		token string
		home  string
		want  string
	}{
		{"bare tilde", "~", "/home/u", "/home/u"},
		{"tilde slash", "~/", "/home/u", "/home/u"},
		{"tilde path", "~/src/ush", "/home/u", "/home/u/src/ush"},
		{"tilde user form", "~root", "/home/u", "~root"},
		{"tilde in the middle", "a~b", "/home/u", "a~b"},
		{"trailing tilde", "backup~", "/home/u", "backup~"},
		{"plain token", "ls", "/home/u", "ls"},
		{"no home", "~/x", "", "~/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandTilde(tt.token, tt.home))
		})
	}
}
