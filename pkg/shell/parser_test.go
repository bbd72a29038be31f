package shell

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParser_Parse(t *testing.T) {

	// Table-driven test:  each test case has a name, input and expected output.
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple command",
			input:    "echo hello",
			expected: []string{"echo", "hello"},
		},
		{
			name:     "command with multiple arguments",
			input:    "ls -la /home/user",
			expected: []string{"ls", "-la", "/home/user"},
		},
		{
			name:     "quotes are ordinary characters",
			input:    "echo 'hello world'",
			expected: []string{"echo", "'hello", "world'"},
		},
		{
			name:     "backslashes are ordinary characters",
			input:    `echo hello\ world`,
			expected: []string{"echo", `hello\`, "world"},
		},
		{
			name:     "dollar is not expanded",
			input:    "echo $HOME ${PATH}",
			expected: []string{"echo", "$HOME", "${PATH}"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "only whitespace",
			input:    "   \t  \n  ",
			expected: []string{},
		},
		{
			name:     "multiple spaces between arguments",
			input:    "echo    hello     world",
			expected: []string{"echo", "hello", "world"},
		},
		{
			name:     "tabs and trailing newline",
			input:    "cd\t/tmp\n",
			expected: []string{"cd", "/tmp"},
		},
	}

	for _, tt := range tests {

		t.Run(tt.name, func(t *testing.T) {

			parser := NewDefaultParser()
			res, err := parser.Parse(tt.input)

			if err != nil {
				t.Errorf("Expected no error got %v", err)
				return
			}

			if diff := cmp.Diff(tt.expected, res); diff != "" {
				t.Errorf("input:  %q\nmismatch (-want +got):\n%s", tt.input, diff)
			}

		})

	}

}
